package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/LogiBox/internal/broker/messages"
	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/BearBump/LogiBox/internal/services/shipments"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type logisticsAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type carrierUpdateApplier interface {
	ApplyCarrierUpdate(ctx context.Context, msg messages.CarrierUpdate) (shipments.ApplyResult, error)
}

// runLogisticsAPI serves the HTTP API until ctx is done. A nil consumer runs
// the API without carrier updates.
func runLogisticsAPI(ctx context.Context, opts logisticsAPIOpts, api http.Handler, tracker carrierUpdateApplier, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api, opts.swaggerPath)
	}()

	// The consumer stops on an error it cannot skip. Its message stays
	// uncommitted, so the process exits and the next instance retries it.
	consumerErr := make(chan error, 1)
	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			consumerErr <- consumer.Consume(ctx, carrierUpdateHandler(ctx, tracker))
		}()
	}

	select {
	case <-ctx.Done():
		<-httpErr
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-consumerErr:
		if ctx.Err() != nil {
			<-httpErr
			return ctx.Err()
		}
		slog.Error("kafka consumer stopped", "error", err.Error())
		return fmt.Errorf("kafka consumer: %w", err)
	}
}

// carrierUpdateHandler decodes one message and applies it to the shipment
// tracker. Undecodable payloads are reported as validation errors so the
// consumer can drop them.
func carrierUpdateHandler(ctx context.Context, tracker carrierUpdateApplier) func(key, value []byte) error {
	return func(key, value []byte) error {
		var m messages.CarrierUpdate
		if err := json.Unmarshal(value, &m); err != nil {
			return errs.Validation("decode carrier update %s: %v", key, err)
		}
		res, err := tracker.ApplyCarrierUpdate(ctx, m)
		if err != nil {
			return err
		}
		slog.Debug("carrier update applied",
			"tenant_id", m.TenantID, "shipment_id", m.ShipmentID,
			"recorded", res.Recorded, "duplicates", res.Duplicates, "rejected", res.Rejected)
		return nil
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, api http.Handler, swaggerPath string) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	r.Mount("/", api)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP API listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
