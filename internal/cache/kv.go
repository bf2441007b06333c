// Package cache provides the shared token snapshot cache: a key/value store
// abstraction with SET-with-TTL / GET semantics plus a resilience wrapper
// that degrades to empty data instead of surfacing failures.
package cache

import (
	"context"
	"errors"
	"time"
)

// KV errors.
var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("key not found")
)

// KV is a minimal key/value store with TTL semantics
// (`SET key value EX ttl` / `GET key`).
type KV interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}
