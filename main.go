/*
Package main runs the feed queue web front end.

A visitor submits a feed URL, the server queues a tasks.getFeed job and
redirects to a poll page that refreshes until the job has a result. The same
queue is exposed as a small JSON API.

With BROKER_URL=memory:// (the default) the worker pool runs inside this
process. With a Redis broker, start cmd/worker alongside it.

Run the application:

	$ PORT=5000 go run .

Endpoints:
  - GET  /              submission form
  - POST /queue         queue a feed fetch, 302 to /feed/{id}
  - GET  /feed/{id}     poll a job
  - POST /api/tasks/{name}, GET /api/jobs/{id}, GET /api/feeds
  - GET  /health, /health/live, /health/ready, /metrics, /swagger/
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/config"
	"github.com/Nexora-Open-Source/feed-queue/container"
	_ "github.com/Nexora-Open-Source/feed-queue/docs"
	"github.com/Nexora-Open-Source/feed-queue/handlers"
	"github.com/Nexora-Open-Source/feed-queue/handlers/health"
	"github.com/Nexora-Open-Source/feed-queue/middleware"
	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const shutdownTimeout = 15 * time.Second

// @title Feed Queue API
// @version 1.0
// @description Queues feed fetches and other tasks, and serves their results.
// @BasePath /
func main() {
	if err := run(); err != nil {
		middleware.Logger.WithError(err).Fatal("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logCloser, err := middleware.InitLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	tracerProvider := monitoring.InitTracing("feed-queue")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := monitoring.ShutdownTracing(ctx, tracerProvider); err != nil {
			middleware.Logger.WithError(err).Warn("Tracing shutdown failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := container.Build(ctx, cfg, middleware.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()

	handler, err := newServer(ctx, services)
	if err != nil {
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var workers sync.WaitGroup
	if cfg.BrokerIsMemory() {
		worker, err := services.GetWorker()
		if err != nil {
			return err
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(workerCtx)
		}()
		middleware.Logger.WithField("concurrency", cfg.Worker.Concurrency).Info("Embedded worker pool started")
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		middleware.Logger.WithFields(logrus.Fields{
			"addr":           cfg.Addr(),
			"broker":         cfg.Broker.URL,
			"result_backend": cfg.Results.URL,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		middleware.Logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		middleware.Logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	stopWorkers()
	workers.Wait()
	middleware.Logger.Info("Server stopped")
	return nil
}

// newServer builds the full middleware chain around the router
func newServer(ctx context.Context, services *container.Container) (http.Handler, error) {
	handler, err := services.GetHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handler: %w", err)
	}
	healthHandler, err := services.GetHealthHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize health handler: %w", err)
	}

	cfg := services.Config
	limiter := middleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	limiter.StartCleanup(ctx, cfg.ClientCleanupInterval)

	router := newRouter(handler, healthHandler, limiter)

	withCORS := middleware.CORSMiddleware(router, cfg.CORSConfig)
	withRecover := middleware.RecoverMiddleware(withCORS)
	return middleware.LoggingMiddleware(withRecover), nil
}

func newRouter(h *handlers.Handler, hh *health.Handler, limiter *middleware.RateLimiter) *mux.Router {
	router := mux.NewRouter()

	monitoring.SetupMetricsEndpoint(router)

	router.HandleFunc("/health", hh.HandleHealthCheck).Methods("GET")
	router.HandleFunc("/health/live", hh.HandleLivenessCheck).Methods("GET")
	router.HandleFunc("/health/ready", hh.HandleReadinessCheck).Methods("GET")

	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// HTML front end
	router.HandleFunc("/", middleware.MonitoringMiddleware(h.HandleIndex)).Methods("GET")
	router.HandleFunc("/queue", middleware.MonitoringMiddleware(middleware.RateLimitMiddleware(limiter, h.HandleQueue))).Methods("POST")
	router.HandleFunc("/feed/{id}", middleware.MonitoringMiddleware(h.HandleShowFeed)).Methods("GET")

	// JSON API
	router.HandleFunc("/api/tasks/{name}", middleware.MonitoringMiddleware(middleware.RateLimitMiddleware(limiter, h.HandleSubmitTask))).Methods("POST")
	router.HandleFunc("/api/jobs/{id}", middleware.MonitoringMiddleware(h.HandleGetJobStatus)).Methods("GET")
	router.HandleFunc("/api/feeds", middleware.MonitoringMiddleware(h.HandleGetFeeds)).Methods("GET")

	return router
}
