// Package cache provides byte-oriented caching backends.
//
// The diagram subsystem uses a cache in front of layout storage: layouts are
// read on every diagram render but written only on explicit saves and
// cleanup, so a read-through cache with write invalidation keeps hot streams
// off the database.
//
// Backends:
//   - [NullCache]: caching disabled
//   - [FileCache]: sharded JSON files, for the CLI
//   - [RedisCache]: shared cache for multi-instance API deployments
//
// Keys are produced by a [Keyer] so deployments sharing one Redis can be
// separated with [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional TTL.
type Cache interface {
	// Get returns the value and true on a hit, or nil and false on a miss.
	// Expired entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	// TTLLayout bounds how long a cached layout may outlive an out-of-band
	// write that bypassed invalidation.
	TTLLayout = 10 * time.Minute
)
