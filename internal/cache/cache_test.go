package cache

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, errs.ErrConcurrencyConflict)
	require.NoError(t, release(ctx))

	_, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// expired leases can be taken over
	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
}
