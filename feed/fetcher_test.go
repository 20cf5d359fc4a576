package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(maxBytes int64) *Fetcher {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewFetcher(nil, "feed-queue-test", maxBytes, logger)
}

func serve(contentType, body string, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestFetchValidFeed(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, validRSS)
	}))
	defer srv.Close()

	result, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	require.NotNil(t, result.Feed)
	assert.False(t, result.Bozo)
	assert.Len(t, result.Feed.Entries, 3)
	assert.Equal(t, "feed-queue-test", gotUA)
	assert.Contains(t, gotAccept, "application/rss+xml")
}

func TestFetchNonXMLContentType(t *testing.T) {
	srv := serve("text/plain", validRSS, http.StatusOK)
	defer srv.Close()

	result, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	require.NotNil(t, result.Feed)
	assert.Nil(t, result.Error)
	assert.Equal(t, "Test Blog", result.Feed.Title)
}

func TestFetchTruncatedFeed(t *testing.T) {
	srv := serve("application/rss+xml", truncatedRSS, http.StatusOK)
	defer srv.Close()

	result, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	require.NotNil(t, result.Error)
	assert.Equal(t, &ErrorDescriptor{Message: "unexpected EOF", Line: 4}, result.Error)
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	srv := serve("text/html", "missing", http.StatusNotFound)
	defer srv.Close()

	result, err := newTestFetcher(0).Fetch(context.Background(), srv.URL)

	assert.Nil(t, result)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestFetchNetworkError(t *testing.T) {
	srv := serve("application/rss+xml", validRSS, http.StatusOK)
	url := srv.URL
	srv.Close()

	result, err := newTestFetcher(0).Fetch(context.Background(), url)

	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestFetchBodyTooLarge(t *testing.T) {
	srv := serve("application/rss+xml", validRSS, http.StatusOK)
	defer srv.Close()

	_, err := newTestFetcher(64).Fetch(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}
