package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/LogiBox/config"
	"github.com/BearBump/LogiBox/internal/broker/kafka"
	"github.com/BearBump/LogiBox/internal/cache/rediscache"
	"github.com/BearBump/LogiBox/internal/integrations/carrier"
	"github.com/BearBump/LogiBox/internal/integrations/carrier/emulatorv1"
	"github.com/BearBump/LogiBox/internal/integrations/carrier/fake"
	"github.com/BearBump/LogiBox/internal/services/poller"
	"github.com/BearBump/LogiBox/internal/storage/pglogistics"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo poller.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) poller.Producer
	newRateLimiter   func(cfg *config.Config) poller.RateLimiter
	newCarrierClient func(cfg *config.Config) carrier.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (poller.Repository, func(), error) {
			var opts []pglogistics.Option
			if ms := cfg.Database.LockTimeoutMillis; ms > 0 {
				opts = append(opts, pglogistics.WithLockTimeout(time.Duration(ms)*time.Millisecond))
			}
			st, err := pglogistics.New(cfg.Database.ConnString(), opts...)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) poller.Producer {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newRateLimiter: func(cfg *config.Config) poller.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
		newCarrierClient: func(cfg *config.Config) carrier.Client {
			return carrier.NewBreaker(carrierClient(cfg.LogiBox), carrier.BreakerConfig{
				FailureThreshold: uint32(max(cfg.LogiBox.BreakerFailureThreshold, 0)),
				Timeout:          time.Duration(cfg.LogiBox.BreakerOpenSeconds) * time.Second,
			})
		},
	}
}

// carrierClient talks to the carrier emulator when one is configured and
// falls back to the local fake otherwise.
func carrierClient(cfg config.LogiBoxConfig) carrier.Client {
	if cfg.CarrierEmulatorBaseURL != "" && cfg.CarrierEmulatorMode == "v1" {
		return emulatorv1.New(cfg.CarrierEmulatorBaseURL, cfg.CarrierEmulatorAPIKey)
	}
	if cfg.CarrierEmulatorMode != "" && cfg.CarrierEmulatorMode != "fake" {
		slog.Warn("unknown carrier emulator mode, using fake carrier", "mode", cfg.CarrierEmulatorMode)
	}
	return fake.New()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// plannerConfig overlays the configured delays on the poller defaults.
func plannerConfig(cfg config.LogiBoxConfig) poller.PlannerConfig {
	pc := poller.DefaultPlannerConfig()
	set := func(dst *time.Duration, n int) {
		if n > 0 {
			*dst = seconds(n)
		}
	}
	set(&pc.MovingMinDelay, cfg.WorkerNextCheckMovingMinSeconds)
	set(&pc.MovingMaxDelay, cfg.WorkerNextCheckMovingMaxSeconds)
	set(&pc.OutForDeliveryDelay, cfg.WorkerNextCheckOutForDeliverySeconds)
	set(&pc.UnknownDelay, cfg.WorkerNextCheckUnknownSeconds)
	set(&pc.Backoff1, cfg.WorkerBackoff1Seconds)
	set(&pc.Backoff2, cfg.WorkerBackoff2Seconds)
	set(&pc.Backoff3, cfg.WorkerBackoff3Seconds)
	set(&pc.Backoff4, cfg.WorkerBackoff4Seconds)
	if pc.MovingMaxDelay < pc.MovingMinDelay {
		pc.MovingMaxDelay = pc.MovingMinDelay
	}
	return pc
}

func topicName(cfg *config.Config) string {
	if cfg.Kafka.CarrierUpdatesTopicName != "" {
		return cfg.Kafka.CarrierUpdatesTopicName
	}
	return "logistics.carrier_updates"
}

// newCarrierPoller wires the poller from cfg. closeFn releases the storage.
func newCarrierPoller(cfg *config.Config, f workerFactories) (*poller.Poller, func(), error) {
	lb := cfg.LogiBox

	pollInterval := seconds(lb.WorkerPollIntervalSeconds)
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := lb.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := lb.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := seconds(lb.WorkerLeaseSeconds)
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(lb.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	if closeFn == nil {
		closeFn = func() {}
	}

	p := poller.New(repo, f.newCarrierClient(cfg), f.newProducer(cfg), f.newRateLimiter(cfg), topicName(cfg)).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(plannerConfig(lb)).
		WithCarrierRateLimits(lb.WorkerCarrierRateLimits).
		WithPublishAttempts(lb.WorkerPublishAttempts)
	return p, closeFn, nil
}

// RunCarrierWorker polls carriers until ctx is done. When swaggerPath is set
// the ops HTTP server runs next to the poller and stops it on failure.
func RunCarrierWorker(ctx context.Context, cfg *config.Config, f workerFactories, swaggerPath string) error {
	p, closeFn, err := newCarrierPoller(cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	if swaggerPath == "" {
		return p.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.LogiBox.WorkerHTTPAddr,
			swaggerPath: swaggerPath,
			poller:      p,
			cfg:         cfg,
		})
	}()

	pollErr := make(chan error, 1)
	go func() { pollErr <- p.Run(ctx) }()

	select {
	case err := <-pollErr:
		cancel()
		<-httpErr
		return err
	case err := <-httpErr:
		cancel()
		<-pollErr
		if err == nil {
			return ctx.Err()
		}
		return fmt.Errorf("worker http: %w", err)
	}
}
