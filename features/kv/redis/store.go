// Package redis wires the kv.Store interface to Redis. Abort flags, liveness
// markers and run state snapshots all live behind this store, so deployments
// point it at the same Redis instance Pulse streams use.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultTimeout = 5 * time.Second
	clientName     = "eval-kv-redis"
)

type (
	// Options configures the Redis-backed KV store.
	Options struct {
		// Client is the Redis connection. Required; the caller owns its
		// lifecycle.
		Client *goredis.Client
		// Timeout bounds individual operations. Defaults to 5s.
		Timeout time.Duration
	}

	// Store implements kv.Store over a Redis connection.
	Store struct {
		redis   commands
		pinger  pinger
		timeout time.Duration
	}

	// commands is the subset of go-redis operations the store uses, narrowed
	// for tests.
	commands interface {
		Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
		Get(ctx context.Context, key string) *goredis.StringCmd
		Del(ctx context.Context, keys ...string) *goredis.IntCmd
	}

	pinger interface {
		Ping(ctx context.Context) *goredis.StatusCmd
	}
)

// New builds a Redis-backed KV store from the given options.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{redis: opts.Client, pinger: opts.Client, timeout: timeout}, nil
}

// Name implements health.Pinger.
func (s *Store) Name() string { return clientName }

// Ping implements health.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if s.pinger == nil {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pinger.Ping(ctx).Err()
}

// Set stores the value under key with the given TTL. A zero TTL persists the
// key indefinitely.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.redis.Set(ctx, key, value, ttl).Err()
}

// Get returns the value stored under key. The boolean reports whether the key
// exists; a missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	val, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Del removes the given keys. Missing keys are ignored.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.redis.Del(ctx, keys...).Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
