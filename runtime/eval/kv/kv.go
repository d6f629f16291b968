// Package kv defines the shared key-value store contract used for run
// coordination: abort flags, liveness markers, and polled run state. The
// canonical implementation is Redis (features/kv/redis); tests use in-memory
// fakes.
package kv

import (
	"context"
	"time"
)

// Store exposes the minimal string key-value operations the evaluation
// runtime needs. Values are short strings (flags, timestamps, JSON blobs);
// every write carries a TTL so orphaned keys are eventually swept.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Set writes value under key with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value stored under key. The boolean reports whether
	// the key exists; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Del removes the given keys. Deleting a missing key is not an error.
	Del(ctx context.Context, keys ...string) error
}
