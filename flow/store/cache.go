// Package store provides cache-collaborator backends for cached workflow
// steps.
//
// The contract is deliberately opaque: keys and values mean nothing to the
// backends, and key derivation plus eviction policy stay with the caller.
// Backends range from an in-memory map for tests to SQLite and MySQL for
// caches that outlive the process.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by database-backed caches after Close.
var ErrClosed = errors.New("cache is closed")

// Cache is the collaborator consulted by cached workflow steps.
//
// Type parameter V is the cached value type.
type Cache[V any] interface {
	// Get returns the value stored under key. The second return reports
	// whether a live (non-expired) value was present; an absent key is not
	// an error.
	Get(ctx context.Context, key string) (V, bool, error)

	// Set stores value under key. A ttl > 0 expires the entry after that
	// duration; ttl <= 0 stores it without expiry.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
}
