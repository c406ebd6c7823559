package images

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache holds loaded images keyed by source URL.
type Cache interface {
	Get(src string) (*Image, bool)
	Set(src string, img *Image)
	Has(src string) bool
	Delete(src string)
	Clear()
	Stats() Stats
}

// Stats describes cache occupancy. HitRate is total hits over live entries.
type Stats struct {
	Size    int
	MaxSize int
	HitRate float64
}

// Policy bounds a cache by entry count and entry age.
type Policy struct {
	MaxSize int
	MaxAge  time.Duration
}

// DefaultPolicy keeps at most 50 images for 30 minutes.
func DefaultPolicy() Policy {
	return Policy{MaxSize: 50, MaxAge: 30 * time.Minute}
}

type cacheEntry struct {
	img  *Image
	hits atomic.Int64
}

// MemoryCache is an in-process Cache. Expired entries are dropped lazily:
// reads treat them as absent and writes sweep them before inserting. When
// full, a write evicts the single oldest entry.
type MemoryCache struct {
	mu     sync.Mutex
	items  *gocache.Cache
	policy Policy
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache creates a MemoryCache. Non-positive policy fields fall
// back to DefaultPolicy.
func NewMemoryCache(p Policy) *MemoryCache {
	def := DefaultPolicy()
	if p.MaxSize <= 0 {
		p.MaxSize = def.MaxSize
	}
	if p.MaxAge <= 0 {
		p.MaxAge = def.MaxAge
	}
	return &MemoryCache{
		// No janitor: expiry is handled on access.
		items:  gocache.New(p.MaxAge, 0),
		policy: p,
	}
}

// Policy returns the eviction policy in effect.
func (c *MemoryCache) Policy() Policy {
	return c.policy
}

// Get returns a live entry and counts a hit.
func (c *MemoryCache) Get(src string) (*Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items.Get(src)
	if !ok {
		c.items.Delete(src)
		return nil, false
	}
	e := v.(*cacheEntry)
	e.hits.Add(1)
	return e.img, true
}

// Has reports whether a live entry exists. Like Get, it counts a hit.
func (c *MemoryCache) Has(src string) bool {
	_, ok := c.Get(src)
	return ok
}

// Set stores img, sweeping expired entries and evicting the oldest one when
// the cache is full.
func (c *MemoryCache) Set(src string, img *Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.DeleteExpired()
	if _, exists := c.items.Get(src); !exists && c.items.ItemCount() >= c.policy.MaxSize {
		c.evictOldest()
	}
	c.items.Set(src, &cacheEntry{img: img}, gocache.DefaultExpiration)
}

// evictOldest drops the entry with the earliest expiry, which is the one
// written first since all entries share MaxAge.
func (c *MemoryCache) evictOldest() {
	var (
		oldestKey string
		oldest    int64 = math.MaxInt64
	)
	for k, it := range c.items.Items() {
		if it.Expiration < oldest {
			oldestKey, oldest = k, it.Expiration
		}
	}
	if oldestKey != "" {
		c.items.Delete(oldestKey)
	}
}

// Delete removes src.
func (c *MemoryCache) Delete(src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Delete(src)
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Flush()
}

// Stats reports live entries and their hit rate.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := c.items.Items()
	var hits int64
	for _, it := range items {
		hits += it.Object.(*cacheEntry).hits.Load()
	}
	st := Stats{Size: len(items), MaxSize: c.policy.MaxSize}
	if st.Size > 0 {
		st.HitRate = float64(hits) / float64(st.Size)
	}
	return st
}
