package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/LogiBox/config"
	"github.com/BearBump/LogiBox/internal/services/poller"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	poller *poller.Poller
	cfg    *config.Config
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.poller == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "poller not wired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		if opts.poller == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "poller not wired"})
			return
		}
		writeJSON(w, http.StatusOK, opts.poller.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		if opts.cfg == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "config not wired"})
			return
		}
		// Operational settings only, no credentials.
		lb := opts.cfg.LogiBox
		writeJSON(w, http.StatusOK, map[string]any{
			"pollIntervalSeconds":            lb.WorkerPollIntervalSeconds,
			"batchSize":                      lb.WorkerBatchSize,
			"concurrency":                    lb.WorkerConcurrency,
			"leaseSeconds":                   lb.WorkerLeaseSeconds,
			"rateLimitPerMinute":             lb.WorkerRateLimitPerMinute,
			"carrierRateLimits":              lb.WorkerCarrierRateLimits,
			"publishAttempts":                lb.WorkerPublishAttempts,
			"nextCheckMovingMinSeconds":      lb.WorkerNextCheckMovingMinSeconds,
			"nextCheckMovingMaxSeconds":      lb.WorkerNextCheckMovingMaxSeconds,
			"nextCheckOutForDeliverySeconds": lb.WorkerNextCheckOutForDeliverySeconds,
			"nextCheckUnknownSeconds":        lb.WorkerNextCheckUnknownSeconds,
			"breakerFailureThreshold":        lb.BreakerFailureThreshold,
			"breakerOpenSeconds":             lb.BreakerOpenSeconds,
			"carrierEmulatorMode":            lb.CarrierEmulatorMode,
			"carrierUpdatesTopicName":        topicName(opts.cfg),
		})
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		if opts.poller == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "poller not wired"})
			return
		}
		opts.poller.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]bool{"triggered": true})
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
