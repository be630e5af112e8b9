package handler

import (
	"context"
	"sync"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/stretchr/testify/mock"
)

type mockListingRepo struct {
	mock.Mock
}

func listingsOrNil(v interface{}) []*domain.Listing {
	if v == nil {
		return nil
	}
	return v.([]*domain.Listing)
}

func (m *mockListingRepo) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	args := m.Called(ctx)
	return listingsOrNil(args.Get(0)), args.Error(1)
}

func (m *mockListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockListingRepo) Update(ctx context.Context, id string, fields domain.Fields) (*domain.Listing, error) {
	args := m.Called(ctx, id, fields)
	if l := args.Get(0); l != nil {
		return l.(*domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockListingRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockListingRepo) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if l := args.Get(0); l != nil {
		return l.(*domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockListingRepo) FindByCreator(ctx context.Context, userID string) ([]*domain.Listing, error) {
	args := m.Called(ctx, userID)
	return listingsOrNil(args.Get(0)), args.Error(1)
}

func (m *mockListingRepo) Search(ctx context.Context, text string) ([]*domain.Listing, error) {
	args := m.Called(ctx, text)
	return listingsOrNil(args.Get(0)), args.Error(1)
}

func (m *mockListingRepo) DistinctValues(ctx context.Context, fieldPath string) ([]any, error) {
	args := m.Called(ctx, fieldPath)
	if v := args.Get(0); v != nil {
		return v.([]any), args.Error(1)
	}
	return nil, args.Error(1)
}

type memUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func (r *memUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = "user-" + user.Email
	r.users = append(r.users, user)
	return nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) List(ctx context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.User(nil), r.users...), nil
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendOTP(ctx context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[email] = code
	return nil
}

func (s *captureSender) code(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}
