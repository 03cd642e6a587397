package errs

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := InvalidTransition("shipment", "entregado", "en_reparto")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.NotErrorIs(t, err, ErrConcurrencyConflict)

	wrapped := pkgerrors.Wrap(ComponentShortage("A", "B"), "start assembly")
	require.ErrorIs(t, wrapped, ErrComponentShortage)
	require.Equal(t, []string{"A", "B"}, ShortageSKUs(wrapped))
	require.Nil(t, ShortageSKUs(errors.New("x")))
}

func TestError_Message(t *testing.T) {
	require.Equal(t, "INVALID_TRANSITION: shipment entregado -> en_reparto",
		InvalidTransition("shipment", "entregado", "en_reparto").Error())
	require.Equal(t, "COMPONENT_SHORTAGE: A, B", ComponentShortage("A", "B").Error())
	require.Contains(t, Upstream("select route", errors.New("timeout")).Error(), "timeout")
}

func TestIsRetryable(t *testing.T) {
	require.True(t, IsRetryable(Conflict("update", nil)))
	require.True(t, IsRetryable(pkgerrors.Wrap(Upstream("db", nil), "x")))
	require.False(t, IsRetryable(InvalidPermutation("bad")))
	require.False(t, IsRetryable(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("route", "1")))
	require.Equal(t, http.StatusConflict, HTTPStatus(ErrInvalidTransition))
	require.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(ComponentShortage("A")))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(Upstream("db", nil)))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestRetry_RetriesConflictsWithinBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Budget{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return Conflict("update", nil)
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetry_BudgetExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Budget{Attempts: 2, InitialInterval: time.Millisecond},
		func(ctx context.Context) error {
			calls++
			return Upstream("db", errors.New("down"))
		})
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.Equal(t, 2, calls)
}

func TestRetry_ValidationNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultBudget(), func(ctx context.Context) error {
		calls++
		return InvalidTransition("route", "completed", "in_progress")
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 1, calls)
}

func TestRetry_CancelledContextIsTyped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, NoRetry(), func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))

	calls := 0
	err = Retry(ctx, Budget{Attempts: 5, InitialInterval: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return Conflict("update", nil)
	})
	require.Error(t, err)
	require.NotEmpty(t, KindOf(err))
	require.LessOrEqual(t, calls, 1)
}

func TestRetry_DeadlineWhileBackingOff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Retry(ctx, Budget{Attempts: 100, InitialInterval: 50 * time.Millisecond, MaxInterval: 50 * time.Millisecond},
		func(ctx context.Context) error { return Upstream("db", errors.New("down")) })
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
}
