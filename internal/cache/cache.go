// Package cache holds read-side caching of zone queries.
//
// Entries are keyed under a generation number; a rebuild bumps the
// generation so every earlier entry is ignored and left to expire.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON-encoded query results
type Cache interface {
	// Get decodes a cached value into dest and reports whether it was found
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	// Invalidate drops every entry written so far
	Invalidate(ctx context.Context) error
}

// DefaultTTL bounds how long an entry lives
const DefaultTTL = time.Hour

// RedisCache is a generation-keyed cache in Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Open connects to Redis. An empty address returns a no-op cache.
func Open(ctx context.Context, addr, password string) (Cache, error) {
	if addr == "" {
		return Noop{}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	slog.Info("Redis cache enabled", "addr", addr)
	return NewRedisCache(client, "etap", DefaultTTL), nil
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":generation"
}

func entryKey(prefix string, generation int64, key string) string {
	return prefix + ":" + strconv.FormatInt(generation, 10) + ":" + key
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get implements Cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read cache generation: %w", err)
	}

	data, err := c.client.Get(ctx, entryKey(c.prefix, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	gen, err := c.generation(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache generation: %w", err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return c.client.Set(ctx, entryKey(c.prefix, gen, key), data, c.ttl).Err()
}

// Invalidate implements Cache by bumping the generation
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Noop never stores anything
type Noop struct{}

func (Noop) Get(ctx context.Context, key string, dest interface{}) (bool, error) { return false, nil }
func (Noop) Set(ctx context.Context, key string, value interface{}) error { return nil }
func (Noop) Invalidate(ctx context.Context) error { return nil }
