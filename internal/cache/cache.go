// Package cache stores deterministic build results keyed by their inputs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const compileKeyPrefix = "contraforge:compile:"

// ErrMiss is returned by Get when the key is absent
var ErrMiss = errors.New("cache miss")

// Cache is a byte-oriented key/value cache with expiry
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// CompileKey derives the cache key for a compilation.
// Fields are length-prefixed so that no two input tuples share a key.
func CompileKey(compilerVersion, contractName, sourceCode string) string {
	h := sha256.New()
	for _, part := range []string{compilerVersion, contractName, sourceCode} {
		fmt.Fprintf(h, "%d:%s;", len(part), part)
	}
	return compileKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

var _ Cache = (*Redis)(nil)

// Redis is a Cache backed by a Redis server
type Redis struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedis connects to the Redis server at url (redis://host:port/db) and
// verifies the connection.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parsing url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *goredis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get returns the cached value or ErrMiss
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	return val, nil
}

// Set stores value with the configured TTL. A zero TTL never expires.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop never stores anything; used when caching is disabled
type Noop struct{}

var _ Cache = Noop{}

func (Noop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }
func (Noop) Set(context.Context, string, []byte) error   { return nil }
func (Noop) Close() error                                { return nil }
