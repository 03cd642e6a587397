package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/LogiBox/config"
	"github.com/BearBump/LogiBox/internal/api/httpapi"
	"github.com/BearBump/LogiBox/internal/broker/kafka"
	"github.com/BearBump/LogiBox/internal/cache"
	"github.com/BearBump/LogiBox/internal/cache/rediscache"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/services/assembly"
	"github.com/BearBump/LogiBox/internal/services/fulfillment"
	"github.com/BearBump/LogiBox/internal/services/replenishment"
	"github.com/BearBump/LogiBox/internal/services/routes"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/BearBump/LogiBox/internal/storage/memstore"
	"github.com/BearBump/LogiBox/internal/storage/pglogistics"
)

// logisticsStore is everything the services persist through.
type logisticsStore interface {
	shipments.Repository
	replenishment.Repository
	assembly.Repository
	fulfillment.Repository
	routes.Repository
}

type logisticsAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     logisticsAPIOpts
	api      *httpapi.API
	tracker  *shipments.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapLogisticsAPI() *logisticsAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config, %v", err))
	}

	app := &logisticsAPIApp{}

	st := mustOpenStore(cfg, app)
	bytesCache, locker := newCaches(cfg, app)

	cacheTTL := time.Duration(cfg.LogiBox.CurrentShipmentTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	budget := retryBudget(cfg.LogiBox)

	tracker := shipments.New(st, bytesCache, cacheTTL).WithRetryBudget(budget)
	replen := replenishment.New(st).WithRetryBudget(budget)
	assemblySvc := assembly.New(st, replen).WithRetryBudget(budget)
	fulfillmentSvc := fulfillment.New(st, tracker).WithRetryBudget(budget)
	routesSvc := routes.New(st, tracker, locker, routeOptions(cfg.LogiBox)).WithRetryBudget(budget)

	httpAddr := cfg.LogiBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.LogiBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "logistics-api"
	}
	topic := cfg.Kafka.CarrierUpdatesTopicName
	if topic == "" {
		topic = "logistics.carrier_updates"
	}
	if cfg.Kafka.Host != "" {
		app.consumer = kafka.NewConsumer(cfg.Kafka.Brokers(), topic, consumerGroup)
	} else {
		slog.Warn("kafka is not configured, carrier updates are not consumed")
	}

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = logisticsAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		topic:         topic,
		consumerGroup: consumerGroup,
	}
	app.api = httpapi.New(tracker, replen, assemblySvc, fulfillmentSvc, routesSvc)
	app.tracker = tracker
	return app
}

func mustOpenStore(cfg *config.Config, app *logisticsAPIApp) logisticsStore {
	switch cfg.LogiBox.Storage {
	case "memory":
		slog.Warn("using in-memory storage, state is lost on restart")
		return memstore.New()
	case "", "postgres":
		var opts []pglogistics.Option
		if ms := cfg.Database.LockTimeoutMillis; ms > 0 {
			opts = append(opts, pglogistics.WithLockTimeout(time.Duration(ms)*time.Millisecond))
		}
		st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second, opts...)
		app.closers = append(app.closers, st.Close)
		return st
	default:
		panic(fmt.Sprintf("unknown storage %q", cfg.LogiBox.Storage))
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration, opts ...pglogistics.Option) *pglogistics.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pglogistics.New(connString, opts...)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

// newCaches uses Redis for the shipment cache and route locks when it is
// configured; otherwise shipments are read uncached and route locks are
// process local.
func newCaches(cfg *config.Config, app *logisticsAPIApp) (cache.BytesCache, cache.Locker) {
	if cfg.Redis.Host == "" {
		return nil, cache.NewLocalLocker()
	}
	rc := rediscache.New(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = rc.Close() })
	return rc, rc.Locker()
}

func retryBudget(c config.LogiBoxConfig) errs.Budget {
	b := errs.DefaultBudget()
	if c.RetryAttempts > 0 {
		b.Attempts = c.RetryAttempts
	}
	if c.RetryInitialIntervalMillis > 0 {
		b.InitialInterval = time.Duration(c.RetryInitialIntervalMillis) * time.Millisecond
	}
	if c.RetryMaxIntervalMillis > 0 {
		b.MaxInterval = time.Duration(c.RetryMaxIntervalMillis) * time.Millisecond
	}
	return b
}

func routeOptions(c config.LogiBoxConfig) routes.Options {
	o := routes.DefaultOptions()
	if c.RouteAverageSpeedKmh > 0 {
		o.AverageSpeedKmh = c.RouteAverageSpeedKmh
	}
	if c.RouteStopServiceMinutes > 0 {
		o.StopServiceMinutes = c.RouteStopServiceMinutes
	}
	if c.RouteLockTTLSeconds > 0 {
		o.LockTTL = time.Duration(c.RouteLockTTLSeconds) * time.Second
	}
	o.TwoOpt = c.RouteTwoOpt
	return o
}

func (a *logisticsAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *logisticsAPIApp) Run() error {
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runLogisticsAPI(a.ctx, a.opts, a.api.Handler(), a.tracker, consumer)
}
