package domain

import (
	"context"
	"io"
)

type ListingRepository interface {
	ListAll(ctx context.Context) ([]*Listing, error)
	Create(ctx context.Context, listing *Listing) error
	// Update applies fields with $set semantics and returns the stored record.
	Update(ctx context.Context, id string, fields Fields) (*Listing, error)
	// Delete succeeds when nothing matched, including malformed ids.
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Listing, error)
	FindByCreator(ctx context.Context, userID string) ([]*Listing, error)
	Search(ctx context.Context, text string) ([]*Listing, error)
	DistinctValues(ctx context.Context, fieldPath string) ([]any, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// MediaStorage persists uploaded media under caller-chosen keys.
type MediaStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

type FilterOptionsCache interface {
	Get(ctx context.Context) (*FilterOptions, error)
	Set(ctx context.Context, opts *FilterOptions) error
	Invalidate(ctx context.Context) error
}
