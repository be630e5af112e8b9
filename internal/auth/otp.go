package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpDigits      = 6
	MaxOTPAttempts = 5
)

var (
	ErrOTPInvalid  = fmt.Errorf("%w: one-time code is invalid", domain.ErrUnauthorized)
	ErrOTPExpired  = fmt.Errorf("%w: one-time code has expired", domain.ErrUnauthorized)
	ErrOTPNotFound = errors.New("one-time code not found")
)

// OTPEntry is a pending one-time code. Only the bcrypt hash is kept.
type OTPEntry struct {
	Hash      string    `json:"hash"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPStore keeps at most one pending code per email. Entries disappear once
// their TTL elapses. Every method returns ErrOTPNotFound when there is no
// live entry.
type OTPStore interface {
	// Save replaces any pending code and resets its attempt counter.
	Save(ctx context.Context, email string, entry *OTPEntry, ttl time.Duration) error
	Load(ctx context.Context, email string) (*OTPEntry, error)
	// IncrAttempts records one verification attempt and returns the new
	// count. Concurrent callers always observe distinct counts.
	IncrAttempts(ctx context.Context, email string) (int, error)
	// Take removes the entry and returns it. At most one caller wins.
	Take(ctx context.Context, email string) (*OTPEntry, error)
	Delete(ctx context.Context, email string) error
}

type CodeSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// Service implements passwordless login: a code is mailed to the user and
// exchanged for a JWT.
type Service struct {
	store  OTPStore
	sender CodeSender
	users  domain.UserRepository
	tokens *TokenManager
	admins map[string]struct{}
	ttl    time.Duration
	logger *logger.Logger

	now     func() time.Time
	newCode func() (string, error)
}

func NewService(
	store OTPStore,
	sender CodeSender,
	users domain.UserRepository,
	tokens *TokenManager,
	adminEmails []string,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = struct{}{}
	}
	return &Service{
		store:   store,
		sender:  sender,
		users:   users,
		tokens:  tokens,
		admins:  admins,
		ttl:     ttl,
		logger:  log.Named("AuthService"),
		now:     time.Now,
		newCode: generateCode,
	}
}

// RequestCode issues a fresh code for email, replacing any pending one.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	entry := &OTPEntry{Hash: string(hash), ExpiresAt: s.now().Add(s.ttl)}
	if err := s.store.Save(ctx, email, entry, s.ttl); err != nil {
		s.logger.Error("Failed to save one-time code", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("%w: save code: %v", domain.ErrPersistence, err)
	}
	if err := s.sender.SendOTP(ctx, email, code); err != nil {
		s.logger.Error("Failed to deliver one-time code", zap.String("email", email), zap.Error(err))
		_ = s.store.Delete(ctx, email)
		return fmt.Errorf("deliver code: %w", err)
	}

	s.logger.Info("One-time code issued", zap.String("email", email), zap.Duration("ttl", s.ttl))
	return nil
}

// Verify exchanges a valid code for a signed token. The user record is created
// on first login.
func (s *Service) Verify(ctx context.Context, email, code string) (string, *domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		return "", nil, ErrOTPInvalid
	}

	entry, err := s.store.Load(ctx, email)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return "", nil, ErrOTPInvalid
		}
		return "", nil, fmt.Errorf("%w: load code: %v", domain.ErrPersistence, err)
	}

	if !s.now().Before(entry.ExpiresAt) {
		_ = s.store.Delete(ctx, email)
		return "", nil, ErrOTPExpired
	}

	// The attempt is counted before the compare so parallel guesses cannot
	// share a slot.
	attempts, err := s.store.IncrAttempts(ctx, email)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return "", nil, ErrOTPInvalid
		}
		return "", nil, fmt.Errorf("%w: count attempt: %v", domain.ErrPersistence, err)
	}
	if attempts > MaxOTPAttempts {
		_ = s.store.Delete(ctx, email)
		return "", nil, ErrOTPInvalid
	}

	if err := bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(code)); err != nil {
		if attempts >= MaxOTPAttempts {
			s.logger.Warn("One-time code locked after too many attempts", zap.String("email", email))
			_ = s.store.Delete(ctx, email)
		}
		return "", nil, ErrOTPInvalid
	}

	taken, err := s.store.Take(ctx, email)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return "", nil, ErrOTPInvalid
		}
		return "", nil, fmt.Errorf("%w: redeem code: %v", domain.ErrPersistence, err)
	}
	if taken.Hash != entry.Hash {
		// A newer code replaced the one that matched.
		return "", nil, ErrOTPInvalid
	}

	user, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return token, user, nil
}

// Users lists every registered user.
func (s *Service) Users(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *Service) findOrCreateUser(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	role := domain.RoleUser
	if _, ok := s.admins[email]; ok {
		role = domain.RoleAdmin
	}
	user = &domain.User{Email: email, Role: role, CreatedAt: s.now().UTC()}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to create user", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	s.logger.Info("User created on first login", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
