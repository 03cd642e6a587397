package carrier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker guards a Client with one circuit breaker per carrier code, so a
// carrier that keeps failing is skipped until its timeout elapses while the
// others keep being polled. Every failure leaves as errs.ErrUpstreamUnavailable.
type Breaker struct {
	next Client
	cfg  BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreaker(next Client, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	return &Breaker{next: next, cfg: cfg, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *Breaker) GetTracking(ctx context.Context, carrierCode, trackingNumber string) (TrackingResult, error) {
	res, err := b.breaker(carrierCode).Execute(func() (interface{}, error) {
		return b.next.GetTracking(ctx, carrierCode, trackingNumber)
	})
	switch {
	case err == gobreaker.ErrOpenState, err == gobreaker.ErrTooManyRequests:
		return TrackingResult{}, errs.Upstream("carrier "+carrierCode, err)
	case err != nil:
		if errs.KindOf(err) != "" {
			return TrackingResult{}, err
		}
		return TrackingResult{}, errs.Upstream("carrier "+carrierCode, err)
	}
	out, ok := res.(TrackingResult)
	if !ok {
		return TrackingResult{}, errors.Errorf("carrier %s: unexpected result %T", carrierCode, res)
	}
	return out, nil
}

// State reports the breaker state for carrierCode.
func (b *Breaker) State(carrierCode string) gobreaker.State {
	return b.breaker(carrierCode).State()
}

func (b *Breaker) breaker(carrierCode string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[carrierCode]; ok {
		return cb
	}
	threshold := b.cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "carrier:" + carrierCode,
		MaxRequests: b.cfg.MaxRequests,
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("carrier breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	b.breakers[carrierCode] = cb
	return cb
}
