package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/talaash/internal/log"
)

const (
	// DefaultExpiration keeps snapshot entries warm for the length of a
	// typical research run.
	DefaultExpiration = 10 * time.Minute
	// DefaultCleanupInterval bounds memory for evicted sessions.
	DefaultCleanupInterval = 30 * time.Minute
)

// Memory is an in-memory Manager backed by go-cache.
type Memory[V any] struct {
	useCase string
	cache   *gocache.Cache
}

// NewMemory creates an in-memory cache. useCase names the caller in logs.
func NewMemory[V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *Memory[V] {
	return &Memory[V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

var _ Manager[any] = (*Memory[any])(nil)

// Get retrieves an item from the cache by its key.
func (c *Memory[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "useCase", c.useCase, "key", key)
		return zero, false
	}

	log.Debug(log.CatCache, "cache hit", "useCase", c.useCase, "key", key)
	return v, true
}

// Set stores a value with a TTL. A zero ttl uses the cache default.
func (c *Memory[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	c.cache.Set(key, value, ttl)
}

// Delete removes values by key.
func (c *Memory[V]) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.cache.Delete(key)
	}
}

// Flush drops every entry.
func (c *Memory[V]) Flush(ctx context.Context) {
	c.cache.Flush()
}
