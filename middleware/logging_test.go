package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Nexora-Open-Source/feed-queue/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	previous := Logger
	buf := &bytes.Buffer{}
	Logger = newJSONLogger()
	Logger.SetOutput(buf)
	t.Cleanup(func() { Logger = previous })
	return buf
}

func TestInitLogger(t *testing.T) {
	previous := Logger
	defer func() { Logger = previous }()

	closer, err := InitLogger("debug", "")
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	_, err = InitLogger("loud", "")
	assert.Error(t, err)

	closer, err = InitLogger("info", filepath.Join(t.TempDir(), "feed-queue.log"))
	require.NoError(t, err)
	Logger.Info("hello")
	assert.NoError(t, closer.Close())
}

func TestLoggingMiddlewareAssignsRequestID(t *testing.T) {
	logs := captureLogs(t)

	var seen string
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = utils.RequestID(r)
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/queue", bytes.NewBufferString("url=http://example.com")))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(utils.RequestIDHeader))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, seen, entry["request_id"])
	assert.Equal(t, float64(http.StatusAccepted), entry["status"])
	assert.Equal(t, "url=http://example.com", entry["request_body"])
}

func TestLoggingMiddlewareKeepsIncomingRequestID(t *testing.T) {
	captureLogs(t)

	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(utils.RequestIDHeader, "abc-123")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(utils.RequestIDHeader))
}

func TestRecoverMiddleware(t *testing.T) {
	captureLogs(t)

	handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/feed/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var apiErr APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&apiErr))
	assert.Equal(t, ErrCodeInternalError, apiErr.Error)
}

func TestErrorHandlerEnvelope(t *testing.T) {
	captureLogs(t)

	w := httptest.NewRecorder()
	RespondNotFound(w, assert.AnError, "req-1")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var apiErr APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&apiErr))
	assert.Equal(t, ErrCodeNotFound, apiErr.Error)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.Equal(t, assert.AnError.Error(), apiErr.Details)
	assert.NotEmpty(t, apiErr.Timestamp)
}
