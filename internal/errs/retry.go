package errs

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Budget bounds automatic retries of conflict and upstream failures.
type Budget struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultBudget() Budget {
	return Budget{
		Attempts:        3,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() Budget { return Budget{Attempts: 1} }

// Retry runs op until it succeeds, fails with a non-retryable error, the
// budget is spent or ctx is done. Typed errors are returned as is; a
// cancelled or expired ctx comes back as ErrUpstreamUnavailable wrapping the
// context error.
func Retry(ctx context.Context, b Budget, op func(ctx context.Context) error) error {
	return typedContextErr(retry(ctx, b, op))
}

func typedContextErr(err error) error {
	if err == nil || KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Upstream("operation interrupted", err)
	}
	return err
}

func retry(ctx context.Context, b Budget, op func(ctx context.Context) error) error {
	if b.Attempts <= 1 {
		return op(ctx)
	}
	exp := backoff.NewExponentialBackOff()
	if b.InitialInterval > 0 {
		exp.InitialInterval = b.InitialInterval
	}
	if b.MaxInterval > 0 {
		exp.MaxInterval = b.MaxInterval
	}
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(b.Attempts-1)), ctx)
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
