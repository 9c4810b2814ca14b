package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration is how long an entry lives when Set is called with ttl 0.
	DefaultExpiration = 10 * time.Minute

	// DefaultCleanupInterval is how often expired entries are purged.
	DefaultCleanupInterval = 30 * time.Minute
)

// MemoryCache is an in-process cache backed by go-cache.
// Entries expire after their ttl and are purged by a background janitor,
// which is what makes child-reference lists "soft": a list that is not read
// for a while is dropped and reloaded on demand.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates an in-memory cache.
// Non-positive durations fall back to DefaultExpiration and DefaultCleanupInterval.
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	if defaultExpiration <= 0 {
		defaultExpiration = DefaultExpiration
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &MemoryCache{cache: gocache.New(defaultExpiration, cleanupInterval)}
}

// Get retrieves a value from the cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	data, ok := value.([]byte)
	if !ok {
		// Foreign value under our key; drop it and report a miss.
		c.cache.Delete(key)
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores a copy of data in the cache.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, append([]byte(nil), data...), ttl)
	return nil
}

// Delete removes a value from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Flush evicts every entry.
func (c *MemoryCache) Flush() {
	c.cache.Flush()
}

// Len returns the number of entries, including expired ones not yet purged.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// Close flushes the cache.
func (c *MemoryCache) Close() error {
	c.cache.Flush()
	return nil
}

// Ensure MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)
