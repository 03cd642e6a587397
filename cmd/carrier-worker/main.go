package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/LogiBox/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config, %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	swaggerPath := os.Getenv("workerSwaggerPath")
	if swaggerPath == "" {
		slog.Warn("workerSwaggerPath is not set, ops HTTP server is disabled")
	}

	if err := RunCarrierWorker(ctx, cfg, defaultWorkerFactories(), swaggerPath); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
