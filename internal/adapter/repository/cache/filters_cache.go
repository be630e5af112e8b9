package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/listing/domain"
	"github.com/redis/go-redis/v9"
)

const filterOptionsKey = "marketplace:filter-options"

// FilterOptionsCache keeps the facet values of /products/filters in Redis.
type FilterOptionsCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewFilterOptionsCache(client redis.Cmdable, ttl time.Duration) *FilterOptionsCache {
	return &FilterOptionsCache{client: client, ttl: ttl}
}

func (c *FilterOptionsCache) Get(ctx context.Context) (*domain.FilterOptions, error) {
	data, err := c.client.Get(ctx, filterOptionsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var opts domain.FilterOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

func (c *FilterOptionsCache) Set(ctx context.Context, opts *domain.FilterOptions) error {
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, filterOptionsKey, data, c.ttl).Err()
}

func (c *FilterOptionsCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, filterOptionsKey).Err()
}

// NoopFilterOptionsCache always misses. Used when Redis is not configured.
type NoopFilterOptionsCache struct{}

func NewNoop() *NoopFilterOptionsCache {
	return &NoopFilterOptionsCache{}
}

func (n *NoopFilterOptionsCache) Get(ctx context.Context) (*domain.FilterOptions, error) {
	return nil, domain.ErrCacheMiss
}

func (n *NoopFilterOptionsCache) Set(ctx context.Context, opts *domain.FilterOptions) error {
	return nil
}

func (n *NoopFilterOptionsCache) Invalidate(ctx context.Context) error {
	return nil
}
