package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(map[string]Pinger{
		"results": pingFunc(func(context.Context) error { return nil }),
		"broker":  pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, quietLogger())

	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Services["results"])
	assert.Equal(t, "unhealthy: connection refused", status.Services["broker"])
	assert.Equal(t, Version, status.Version)
}

func TestReadinessCheck(t *testing.T) {
	healthy := NewHandler(map[string]Pinger{
		"results": pingFunc(func(context.Context) error { return nil }),
	}, quietLogger())

	w := httptest.NewRecorder()
	healthy.HandleReadinessCheck(w, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down := NewHandler(map[string]Pinger{
		"results": pingFunc(func(context.Context) error { return errors.New("timeout") }),
	}, quietLogger())

	w = httptest.NewRecorder()
	down.HandleReadinessCheck(w, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLivenessCheck(t *testing.T) {
	h := NewHandler(nil, quietLogger())

	w := httptest.NewRecorder()
	h.HandleLivenessCheck(w, httptest.NewRequest("GET", "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alive"`)
}
