package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/sirupsen/logrus"
)

const acceptHeader = "application/atom+xml,application/rdf+xml,application/rss+xml,application/x-netcdf,application/xml;q=0.9,text/xml;q=0.2,*/*;q=0.1"

// DefaultMaxBytes bounds how much of a response body is read
const DefaultMaxBytes int64 = 10 << 20

// Fetcher retrieves feeds over HTTP and parses them
type Fetcher struct {
	client    *http.Client
	parser    *Parser
	userAgent string
	maxBytes  int64
	logger    *logrus.Logger
}

// NewFetcher creates a fetcher. A nil client gets a 30s timeout.
func NewFetcher(client *http.Client, userAgent string, maxBytes int64, logger *logrus.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Fetcher{
		client:    client,
		parser:    NewParser(),
		userAgent: userAgent,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

/*
Fetch retrieves the document at url and parses it.

Parse problems never surface as an error: they are folded into the Result.
Transport failures, non-2xx answers and oversized bodies are returned as errors
so the job that called Fetch fails with them.
*/
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	start := time.Now()

	body, contentType, err := f.download(ctx, url)
	if err != nil {
		monitoring.RecordFeedFetch("failed", time.Since(start).Seconds())
		f.logger.WithFields(logrus.Fields{
			"url":   url,
			"error": err.Error(),
		}).Warn("Feed download failed")
		return nil, err
	}

	result := f.parser.Parse(body, contentType)
	monitoring.RecordFeedFetch("success", time.Since(start).Seconds())
	recordOutcome(result)

	fields := logrus.Fields{
		"url":          url,
		"content_type": contentType,
		"bytes":        len(body),
		"bozo":         result.Bozo,
		"duration_ms":  time.Since(start).Milliseconds(),
	}
	switch {
	case result.Failed():
		fields["message"] = result.Error.Message
		fields["line"] = result.Error.Line
		f.logger.WithFields(fields).Info("Feed parse failed")
	case result.Deviation != nil:
		fields["category"] = result.Deviation.Category
		f.logger.WithFields(fields).Info("Feed parsed with tolerated deviation")
	default:
		fields["entries"] = len(result.Feed.Entries)
		f.logger.WithFields(fields).Debug("Feed parsed")
	}

	return result, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", acceptHeader)
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, "", &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, "", fmt.Errorf("feed body exceeds %d bytes", f.maxBytes)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func recordOutcome(result *Result) {
	switch {
	case result.Failed():
		monitoring.RecordFeedParse("fatal")
	case result.Deviation != nil:
		monitoring.RecordFeedParse("tolerated")
	default:
		monitoring.RecordFeedParse("well_formed")
	}
}
