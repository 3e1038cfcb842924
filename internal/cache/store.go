// Package cache provides the key/value store used for query results and
// table metadata, an in-memory LRU implementation, and the msgpack codec
// for cached values.
package cache

import (
	"context"
	"time"
)

// Store is an opaque key/value store with per-entry TTL.
// Implementations may be backed by Redis, Memcached or memory.
type Store interface {
	// Get returns nil, nil when the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}

// PrefixDeleter is implemented by stores that can evict a key range in one
// call. Catalog.Refresh uses it to drop entries written by other processes.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}
