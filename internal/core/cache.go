// Package core holds the ports and small orchestration services shared by the
// clinic portal's service layer.
package core

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// The core defines the interface and the data layer provides implementations
// (Redis, or an in-process LRU when Redis is not configured).
type CacheRepository interface {
	// Set stores a value with the given TTL. A TTL of 0 means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns nil when the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache backend.
	Health(ctx context.Context) error
}
