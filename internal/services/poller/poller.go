// Package poller drives carrier tracking for in-flight shipments: it claims
// shipments whose check is due, asks the carrier, and publishes what it
// learned as messages.CarrierUpdate for the tracker to apply.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LogiBox/internal/broker/messages"
	"github.com/BearBump/LogiBox/internal/integrations/carrier"
	"github.com/BearBump/LogiBox/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Poller struct {
	repo     Repository
	carrier  carrier.Client
	producer Producer
	rl       RateLimiter

	topic string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	carrierLimits      map[string]int64
	publishAttempts    int

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalThrottled      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, c carrier.Client, producer Producer, rl RateLimiter, topic string) *Poller {
	return &Poller{
		repo:               repo,
		carrier:            c,
		producer:           producer,
		rl:                 rl,
		topic:              topic,
		planner:            DefaultPlanner(),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		carrierLimits:      map[string]int64{},
		publishAttempts:    10,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// WithCarrierRateLimits overrides the per-minute call budget for individual
// carrier codes.
func (p *Poller) WithCarrierRateLimits(perMinute map[string]int) *Poller {
	for code, n := range perMinute {
		if n > 0 {
			p.carrierLimits[code] = int64(n)
		}
	}
	return p
}

func (p *Poller) WithPublishAttempts(n int) *Poller {
	if n > 0 {
		p.publishAttempts = n
	}
	return p
}

// Trigger forces an immediate poll cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalThrottled int64      `json:"totalThrottled"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:   p.totalClaimed.Load(),
		TotalProcessed: p.totalProcessed.Load(),
		TotalThrottled: p.totalThrottled.Load(),
		TotalErrors:    p.totalErrors.Load(),
		InFlight:       p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	items, err := p.repo.ClaimDueShipments(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim due shipments", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, sh := range items {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, sh); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("process shipment", "tenant_id", sh.TenantID, "shipment_id", sh.ID, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

func (p *Poller) limitFor(carrierCode string) int64 {
	if n, ok := p.carrierLimits[carrierCode]; ok {
		return n
	}
	return p.rateLimitPerMinute
}

func (p *Poller) processOne(ctx context.Context, sh *models.Shipment) error {
	now := time.Now().UTC()

	if p.rl != nil {
		if limit := p.limitFor(sh.CarrierCode); limit > 0 {
			minuteKey := fmt.Sprintf("rl:carrier:%s:%s", sh.CarrierCode, now.Format("200601021504"))
			allowed, n, err := p.rl.Allow(ctx, minuteKey, limit, 70*time.Second)
			if err != nil {
				return err
			}
			if !allowed {
				// The claim lease already pushed next_check_at out, so the
				// shipment comes back on its own after the window.
				p.totalThrottled.Add(1)
				slog.Warn("carrier rate limit exceeded", "carrier", sh.CarrierCode, "count", n)
				return nil
			}
		}
	}

	msg := messages.CarrierUpdate{
		TenantID:       sh.TenantID,
		ShipmentID:     sh.ID,
		CarrierCode:    sh.CarrierCode,
		TrackingNumber: sh.TrackingNumber,
		CheckedAt:      now,
	}

	res, err := p.carrier.GetTracking(ctx, sh.CarrierCode, sh.TrackingNumber)
	if err != nil {
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(p.planner.BackoffDelay(sh.CheckFailCount + 1))
	} else {
		status, ok := models.ParseShipmentStatus(res.Status)
		if !ok {
			status = sh.Status
		}
		msg.NextCheckAt = now.Add(p.planner.NextCheckDelay(status))
		for _, e := range res.Events {
			msg.Events = append(msg.Events, messages.CarrierEvent{
				Status:    e.Status,
				StatusRaw: e.StatusRaw,
				EventTime: e.EventTime,
				Location:  e.Location,
				Message:   e.Message,
				Lat:       e.Lat,
				Lng:       e.Lng,
				Payload:   e.Payload,
			})
		}
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	// Messages for one shipment share a partition and stay ordered.
	key := []byte(sh.TenantID + "/" + sh.ID)

	// Kafka may not accept writes right after the stack starts.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(150*time.Millisecond), uint64(p.publishAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(func() error {
		return p.producer.Publish(ctx, p.topic, key, b)
	}, policy); err != nil {
		return errors.Wrap(err, "publish carrier update")
	}
	return nil
}
