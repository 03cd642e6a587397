package cache

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
)

// BytesCache is a best-effort key/value cache. Callers treat every error as
// a miss.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Release gives a held lock back.
type Release func(ctx context.Context) error

// Locker hands out exclusive, expiring locks. Acquire does not wait: a held
// lock yields errs.ErrConcurrencyConflict so the caller can retry.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, errs.Conflict("lock "+key+" is held", nil)
	}
	until := now.Add(ttl)
	l.held[key] = until

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Only drop our own lease; an expired one may have been re-acquired.
		if cur, ok := l.held[key]; ok && cur.Equal(until) {
			delete(l.held, key)
		}
		return nil
	}, nil
}
