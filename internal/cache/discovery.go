// Package cache keeps rendered discovery pages in Redis.
//
// Pages are stored under a generation number. Any event write bumps the
// generation, which orphans every cached page at once; orphans expire by TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "rondpoint"
	DefaultTTL    = 60 * time.Second
)

// Discovery caches public discovery results.
type Discovery interface {
	// Get decodes the cached value for key into dst and reports whether it was found.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	// Invalidate drops every cached page.
	Invalidate(ctx context.Context) error
}

type RedisDiscovery struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisDiscovery(client redis.Cmdable, prefix string, ttl time.Duration) *RedisDiscovery {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDiscovery{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisDiscovery) generationKey() string {
	return r.prefix + ":events:gen"
}

func (r *RedisDiscovery) pageKey(gen int64, key string) string {
	return fmt.Sprintf("%s:events:%d:%s", r.prefix, gen, key)
}

func (r *RedisDiscovery) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, r.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisDiscovery) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	const op = "cache.RedisDiscovery.Get"

	gen, err := r.generation(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	raw, err := r.client.Get(ctx, r.pageKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%s: decode: %w", op, err)
	}
	return true, nil
}

func (r *RedisDiscovery) Set(ctx context.Context, key string, value interface{}) error {
	const op = "cache.RedisDiscovery.Set"

	gen, err := r.generation(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := r.client.Set(ctx, r.pageKey(gen, key), string(raw), r.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *RedisDiscovery) Invalidate(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.generationKey()).Err(); err != nil {
		return fmt.Errorf("cache.RedisDiscovery.Invalidate: %w", err)
	}
	return nil
}

// Nop never hits. It stands in when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, interface{}) error { return nil }
func (Nop) Invalidate(context.Context) error { return nil }
