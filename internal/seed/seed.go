// Package seed loads users and listings from a YAML fixture file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type File struct {
	Users    []User    `yaml:"users"`
	Listings []Listing `yaml:"listings"`
}

type User struct {
	Email string `yaml:"email"`
	Role  string `yaml:"role"`
}

type Listing struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Price       float64        `yaml:"price"`
	Location    string         `yaml:"location"`
	Category    string         `yaml:"category"`
	Features    map[string]any `yaml:"features"`
	Images      []string       `yaml:"images"`
	Videos      []string       `yaml:"videos"`
	CreatedBy   string         `yaml:"createdBy"`
	Approved    bool           `yaml:"approved"`
}

type Result struct {
	UsersCreated    int
	UsersExisting   int
	ListingsCreated int
}

// Parse decodes and validates a fixture file. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	emails := make(map[string]struct{}, len(f.Users))
	for i := range f.Users {
		u := &f.Users[i]
		u.Email = strings.ToLower(strings.TrimSpace(u.Email))
		if u.Email == "" {
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		switch domain.Role(u.Role) {
		case "":
			u.Role = string(domain.RoleUser)
		case domain.RoleUser, domain.RoleAdmin:
		default:
			return nil, fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
		emails[u.Email] = struct{}{}
	}

	for i := range f.Listings {
		l := &f.Listings[i]
		if strings.TrimSpace(l.Name) == "" {
			return nil, fmt.Errorf("listings[%d]: name is required", i)
		}
		if l.Price < 0 {
			return nil, fmt.Errorf("listings[%d]: price cannot be negative", i)
		}
		l.CreatedBy = strings.ToLower(strings.TrimSpace(l.CreatedBy))
		if _, ok := emails[l.CreatedBy]; !ok {
			return nil, fmt.Errorf("listings[%d]: createdBy %q is not a seeded user", i, l.CreatedBy)
		}
		l.Features = normalizeFeatures(l.Features)
	}
	return &f, nil
}

// normalizeFeatures converts YAML integers to float64 so seeded features
// compare equal to those decoded from JSON requests.
func normalizeFeatures(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch n := v.(type) {
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case uint64:
			out[k] = float64(n)
		default:
			out[k] = v
		}
	}
	return out
}

// Loader writes a parsed fixture through the repositories.
type Loader struct {
	listings domain.ListingRepository
	users    domain.UserRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewLoader(listings domain.ListingRepository, users domain.UserRepository, log *logger.Logger) *Loader {
	return &Loader{
		listings: listings,
		users:    users,
		logger:   log.Named("SeedLoader"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply creates missing users, then every listing. Existing users are reused
// with their stored role.
func (l *Loader) Apply(ctx context.Context, f *File) (*Result, error) {
	res := &Result{}
	ids := make(map[string]string, len(f.Users))

	for _, u := range f.Users {
		existing, err := l.users.FindByEmail(ctx, u.Email)
		if err == nil {
			ids[u.Email] = existing.ID
			res.UsersExisting++
			continue
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return res, fmt.Errorf("find user %s: %w", u.Email, err)
		}
		user := &domain.User{Email: u.Email, Role: domain.Role(u.Role), CreatedAt: l.now()}
		if err := l.users.Create(ctx, user); err != nil {
			return res, fmt.Errorf("create user %s: %w", u.Email, err)
		}
		ids[u.Email] = user.ID
		res.UsersCreated++
		l.logger.Info("Seeded user", zap.String("email", u.Email), zap.String("role", u.Role))
	}

	for _, s := range f.Listings {
		now := l.now()
		listing := &domain.Listing{
			Name:        s.Name,
			Description: s.Description,
			Price:       s.Price,
			Location:    s.Location,
			Category:    s.Category,
			Features:    s.Features,
			Images:      nonNil(s.Images),
			Videos:      nonNil(s.Videos),
			CreatedBy:   ids[s.CreatedBy],
			IsApproved:  s.Approved,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := l.listings.Create(ctx, listing); err != nil {
			return res, fmt.Errorf("create listing %q: %w", s.Name, err)
		}
		res.ListingsCreated++
	}
	l.logger.Info("Seed applied",
		zap.Int("users_created", res.UsersCreated),
		zap.Int("users_existing", res.UsersExisting),
		zap.Int("listings_created", res.ListingsCreated))
	return res, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
