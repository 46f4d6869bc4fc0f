// Package cache provides a small keyed cache used to memoize session
// snapshots. Lookup-by-session avoids rebuilding a snapshot for every read;
// the dispatcher invalidates the entry whenever the session mutates.
package cache

import (
	"context"
	"time"
)

// Manager is the caching contract. Keys are strings (session ids).
type Manager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	Flush(ctx context.Context)
}
