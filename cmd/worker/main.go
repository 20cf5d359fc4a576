/*
Command worker consumes jobs from a shared Redis broker and writes their
records to the configured result backend.

It reads the same environment as the web front end and refuses memory://
for the broker or the backend, since the web process could not see either.

	$ BROKER_URL=redis://localhost:6379/0 RESULT_BACKEND=redis://localhost:6379/0 go run ./cmd/worker
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/config"
	"github.com/Nexora-Open-Source/feed-queue/container"
	"github.com/Nexora-Open-Source/feed-queue/middleware"
	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(); err != nil {
		middleware.Logger.WithError(err).Fatal("Worker stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ValidateForWorker(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logCloser, err := middleware.InitLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	tracerProvider := monitoring.InitTracing("feed-queue-worker")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		monitoring.ShutdownTracing(ctx, tracerProvider)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := container.Build(ctx, cfg, middleware.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()

	worker, err := services.GetWorker()
	if err != nil {
		return err
	}

	middleware.Logger.WithFields(logrus.Fields{
		"broker":         cfg.Broker.URL,
		"queue":          cfg.Broker.Queue,
		"result_backend": cfg.Results.URL,
		"concurrency":    cfg.Worker.Concurrency,
	}).Info("Worker starting")

	worker.Run(ctx)

	middleware.Logger.Info("Worker stopped")
	return nil
}
