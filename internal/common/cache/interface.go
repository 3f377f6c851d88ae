package cache

import (
	"context"
	"time"
)

// Cache defines the cache operations the repositories rely on.
type Cache interface {
	BasicOps
	LockOps

	// Ping verifies the cache connection is alive
	Ping(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// BasicOps defines basic key-value operations
type BasicOps interface {
	// Get retrieves the value for the given key; a missing key yields "" and no error
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL
	// If ttl is 0, the key will not expire
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error
}

// LockOps defines owner-checked lease locks
type LockOps interface {
	// TryLock acquires key for ttl, returning false if someone else holds it.
	// The returned token identifies this holder.
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)

	// Unlock releases key only if it still holds token.
	// It returns ErrLockNotHeld when the lease expired or passed to another holder.
	Unlock(ctx context.Context, key, token string) error
}
