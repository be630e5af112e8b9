package mongodb

import (
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listingDocument is the stored shape of a listing. Field names match the
// public JSON names so documents written by earlier deployments stay readable.
type listingDocument struct {
	ID          primitive.ObjectID     `bson:"_id,omitempty"`
	Name        string                 `bson:"name"`
	Description string                 `bson:"description"`
	Price       float64                `bson:"Price"`
	Location    string                 `bson:"location"`
	Category    string                 `bson:"category"`
	Features    map[string]interface{} `bson:"features,omitempty"`
	Images      []string               `bson:"images"`
	Videos      []string               `bson:"videos"`
	CreatedBy   string                 `bson:"createdBy"`
	IsApproved  bool                   `bson:"isApproved"`
	CreatedAt   time.Time              `bson:"createdAt"`
	UpdatedAt   time.Time              `bson:"updatedAt,omitempty"`
}

type userDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func fromDomainListing(l *domain.Listing) (*listingDocument, error) {
	var id primitive.ObjectID
	if l.ID != "" {
		oid, err := primitive.ObjectIDFromHex(l.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid listing id %q: %w", l.ID, err)
		}
		id = oid
	}
	return &listingDocument{
		ID:          id,
		Name:        l.Name,
		Description: l.Description,
		Price:       l.Price,
		Location:    l.Location,
		Category:    l.Category,
		Features:    l.Features,
		Images:      nonNil(l.Images),
		Videos:      nonNil(l.Videos),
		CreatedBy:   l.CreatedBy,
		IsApproved:  l.IsApproved,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}, nil
}

func (d *listingDocument) toDomain() *domain.Listing {
	features := d.Features
	if features == nil {
		features = map[string]interface{}{}
	}
	return &domain.Listing{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Location:    d.Location,
		Category:    d.Category,
		Features:    features,
		Images:      nonNil(d.Images),
		Videos:      nonNil(d.Videos),
		CreatedBy:   d.CreatedBy,
		IsApproved:  d.IsApproved,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toDomainListings(docs []*listingDocument) []*domain.Listing {
	out := make([]*domain.Listing, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:        d.ID.Hex(),
		Email:     d.Email,
		Role:      domain.Role(d.Role),
		CreatedAt: d.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// persistenceError wraps a driver error so callers can match domain.ErrPersistence.
func persistenceError(op string, err error) error {
	return fmt.Errorf("db %s failed: %w: %w", op, domain.ErrPersistence, err)
}
