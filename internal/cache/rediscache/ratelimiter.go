package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterWithClient(redis.NewClient(&redis.Options{Addr: addr}))
}

func NewRateLimiterWithClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow counts one call against key and reports whether it stayed within
// limit. Callers put the window start into key.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errs.Upstream("redis ratelimit", err)
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
