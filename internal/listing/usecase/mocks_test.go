package usecase

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/stretchr/testify/mock"
)

// memListingRepo is an in-memory ListingRepository for behavioural tests.
type memListingRepo struct {
	mu       sync.Mutex
	seq      int
	listings map[string]*domain.Listing
}

func newMemListingRepo() *memListingRepo {
	return &memListingRepo{listings: make(map[string]*domain.Listing)}
}

func (r *memListingRepo) sorted() []*domain.Listing {
	out := make([]*domain.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		c := *l
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memListingRepo) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(), nil
}

func (r *memListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	l.ID = "id" + strconv.Itoa(100+r.seq)
	c := *l
	r.listings[l.ID] = &c
	return nil
}

func (r *memListingRepo) Update(ctx context.Context, id string, fields domain.Fields) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	for k, v := range fields {
		switch k {
		case domain.FieldName:
			l.Name = v.(string)
		case domain.FieldDescription:
			l.Description = v.(string)
		case domain.FieldPrice:
			l.Price = v.(float64)
		case domain.FieldLocation:
			l.Location = v.(string)
		case domain.FieldCategory:
			l.Category = v.(string)
		case domain.FieldIsApproved:
			l.IsApproved = v.(bool)
		}
	}
	c := *l
	return &c, nil
}

func (r *memListingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listings, id)
	return nil
}

func (r *memListingRepo) FindByID(ctx context.Context, id string) (*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, domain.ErrListingNotFound
	}
	c := *l
	return &c, nil
}

func (r *memListingRepo) FindByCreator(ctx context.Context, userID string) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Listing
	for _, l := range r.sorted() {
		if l.CreatedBy == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memListingRepo) Search(ctx context.Context, text string) ([]*domain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text = strings.ToLower(text)
	var out []*domain.Listing
	for _, l := range r.sorted() {
		if strings.Contains(strings.ToLower(l.Name), text) || strings.Contains(strings.ToLower(l.Description), text) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memListingRepo) DistinctValues(ctx context.Context, fieldPath string) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[any]struct{}{}
	var out []any
	for _, l := range r.sorted() {
		var v any
		switch fieldPath {
		case domain.FieldCategory:
			v = l.Category
		case domain.FieldLocation:
			v = l.Location
		default:
			v = l.Features[strings.TrimPrefix(fieldPath, "features.")]
		}
		if v == nil {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out, nil
}

type mockListingRepo struct {
	mock.Mock
}

func (m *mockListingRepo) ListAll(ctx context.Context) ([]*domain.Listing, error) {
	args := m.Called(ctx)
	if l := args.Get(0); l != nil {
		return l.([]*domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
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
	if l := args.Get(0); l != nil {
		return l.([]*domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockListingRepo) Search(ctx context.Context, text string) ([]*domain.Listing, error) {
	args := m.Called(ctx, text)
	if l := args.Get(0); l != nil {
		return l.([]*domain.Listing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockListingRepo) DistinctValues(ctx context.Context, fieldPath string) ([]any, error) {
	args := m.Called(ctx, fieldPath)
	if v := args.Get(0); v != nil {
		return v.([]any), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	return m.Called(ctx, subject, data).Error(0)
}

type mockFilterCache struct {
	mock.Mock
}

func (m *mockFilterCache) Get(ctx context.Context) (*domain.FilterOptions, error) {
	args := m.Called(ctx)
	if o := args.Get(0); o != nil {
		return o.(*domain.FilterOptions), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFilterCache) Set(ctx context.Context, opts *domain.FilterOptions) error {
	return m.Called(ctx, opts).Error(0)
}

func (m *mockFilterCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// memStorage keeps media in a map.
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	types map[string]string
	puts  int
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStorage) Put(ctx context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.files[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return nil
}

func (s *memStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	if !ok {
		return nil, "", domain.ErrMediaNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), s.types[key], nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context) (*domain.FilterOptions, error) { return nil, domain.ErrCacheMiss }
func (noopCache) Set(ctx context.Context, opts *domain.FilterOptions) error { return nil }
func (noopCache) Invalidate(ctx context.Context) error                      { return nil }
