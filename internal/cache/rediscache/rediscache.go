// Package rediscache holds the Redis backed pieces of the pipeline: the
// current shipment cache, route writer locks and carrier call counters.
package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements cache.BytesCache. Outages surface as
// errs.ErrUpstreamUnavailable; the callers treat them as misses.
type RedisCache struct {
	c *redis.Client
}

func New(addr string) *RedisCache {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}))
}

func NewWithClient(c *redis.Client) *RedisCache {
	return &RedisCache{c: c}
}

// Locker returns a route lock manager sharing this cache's connection pool.
func (r *RedisCache) Locker() *Locker {
	return &Locker{c: r.c}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, key).Bytes()
	switch {
	case err == redis.Nil:
		return nil, false, nil
	case err != nil:
		return nil, false, errs.Upstream("redis get "+key, err)
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.c.Set(ctx, key, value, ttl).Err(); err != nil {
		return errs.Upstream("redis set "+key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.c.Del(ctx, key).Err(); err != nil {
		return errs.Upstream("redis del "+key, err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.c.Close()
}
