package catalog

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/wire"
)

// PageCacheConfig sizes a PageCache.
type PageCacheConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// DefaultPageCacheConfig keeps up to 200 pages for 30 seconds.
func DefaultPageCacheConfig() PageCacheConfig {
	return PageCacheConfig{
		Capacity:           200,
		NumShards:          4,
		TTL:                30 * time.Second,
		EvictionPercentage: 10,
	}
}

// PageCache holds recently fetched pages keyed by their encoded query.
type PageCache struct {
	client *sturdyc.Client[*Result]
}

// NewPageCache creates a PageCache. Non-positive fields use defaults.
func NewPageCache(cfg PageCacheConfig) *PageCache {
	def := DefaultPageCacheConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = def.NumShards
	}
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.EvictionPercentage < 1 || cfg.EvictionPercentage > 100 {
		cfg.EvictionPercentage = def.EvictionPercentage
	}
	return &PageCache{
		client: sturdyc.New[*Result](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
	}
}

// QueryKey is the cache key of q.
func QueryKey(q product.Query) string {
	return wire.EncodeQuery(q).Encode()
}

// Get returns a cached page.
func (c *PageCache) Get(q product.Query) (*Result, bool) {
	return c.client.Get(QueryKey(q))
}

// Set stores a page.
func (c *PageCache) Set(q product.Query, r *Result) {
	c.client.Set(QueryKey(q), r)
}

// GetOrFetch returns a cached page or fetches and stores it. Concurrent
// calls for the same query share one fetch.
func (c *PageCache) GetOrFetch(ctx context.Context, q product.Query, fetch func(ctx context.Context) (*Result, error)) (*Result, error) {
	return c.client.GetOrFetch(ctx, QueryKey(q), fetch)
}

// Size returns the number of cached pages.
func (c *PageCache) Size() int {
	return c.client.Size()
}
