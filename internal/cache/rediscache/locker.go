package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/LogiBox/internal/cache"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	c *redis.Client
}

func NewLocker(addr string) *Locker {
	return &Locker{c: redis.NewClient(&redis.Options{Addr: addr})}
}

// Acquire takes the lock with SET NX PX. The returned release is a no-op once
// the lease expired and someone else took it.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (cache.Release, error) {
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, errs.Upstream("redis lock", err)
	}
	if !ok {
		return nil, errs.Conflict("lock "+key+" is held", nil)
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.c, []string{key}, token).Err(); err != nil {
			return errors.Wrap(err, "redis unlock")
		}
		return nil
	}, nil
}
