package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps transport failures talking to the cache backend so
// callers can distinguish them from policy denials.
var ErrUnavailable = errors.New("cache: unavailable")

// Cache is the volatile counter and allow-list backend. Rate-limit windows
// and the access-token allow-list live here; nothing in it is authoritative
// account state.
type Cache interface {
	// IncrementWindow bumps a fixed-window counter and returns the
	// post-increment count. The window TTL is armed only on the first hit,
	// so the window runs from the first event, not the latest.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)

	// Count reads a counter without touching it. Missing keys are zero.
	Count(ctx context.Context, key string) (int64, error)

	// Set stores a value with a TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every key matching prefix* and returns how many
	// were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
