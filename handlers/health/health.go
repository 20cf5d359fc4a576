// Package health provides health check handlers for the feed queue
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/middleware"
	"github.com/Nexora-Open-Source/feed-queue/utils"
	"github.com/sirupsen/logrus"
)

const Version = "1.0.0"

// Pinger is a dependency whose reachability decides readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the health check response structure
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// Handler contains dependencies for health handlers
type Handler struct {
	services map[string]Pinger
	Logger   *logrus.Logger
	started  time.Time
}

// NewHandler creates a health handler checking each named service
func NewHandler(services map[string]Pinger, logger *logrus.Logger) *Handler {
	return &Handler{
		services: services,
		Logger:   logger,
		started:  time.Now(),
	}
}

// HandleHealthCheck reports every service; it always answers 200
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
		Services:  make(map[string]string),
		Uptime:    time.Since(h.started).String(),
	}

	for name, err := range h.check(r.Context()) {
		if err != nil {
			health.Status = "unhealthy"
			health.Services[name] = "unhealthy: " + err.Error()
			h.Logger.WithFields(logrus.Fields{
				"service": name,
				"error":   err.Error(),
			}).Error("Health check failed")
			continue
		}
		health.Services[name] = "healthy"
	}

	writeJSON(w, http.StatusOK, health)
}

// HandleLivenessCheck provides a simple liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).String(),
	})
}

// HandleReadinessCheck answers 503 while any service is unreachable
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := make(map[string]string)
	for name, err := range h.check(r.Context()) {
		if err != nil {
			middleware.RespondServiceUnavailable(w, err, utils.RequestID(r))
			return
		}
		ready[name] = "ready"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services":  ready,
	})
}

func (h *Handler) check(parent context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	results := make(map[string]error, len(h.services))
	for name, svc := range h.services {
		results[name] = svc.Ping(ctx)
	}
	return results
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
