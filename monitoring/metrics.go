// Package monitoring provides metrics and observability for the feed queue
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed fetching metrics
	feedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedqueue_feed_fetch_total",
			Help: "Total number of feed download attempts",
		},
		[]string{"status"},
	)

	feedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedqueue_feed_fetch_duration_seconds",
			Help:    "Duration of feed download and parse",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	feedParseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedqueue_feed_parse_total",
			Help: "Feed parse outcomes: well_formed, tolerated or fatal",
		},
		[]string{"outcome"},
	)

	// Job metrics
	jobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedqueue_jobs_submitted_total",
			Help: "Total number of jobs submitted to the broker",
		},
		[]string{"task"},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedqueue_jobs_total",
			Help: "Total number of jobs executed by workers",
		},
		[]string{"task", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedqueue_job_duration_seconds",
			Help:    "Duration of job execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task", "status"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedqueue_queue_depth",
			Help: "Messages waiting in the in-process broker",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedqueue_active_workers",
			Help: "Number of running worker goroutines",
		},
	)

	// Result cache metrics
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedqueue_result_cache_hits_total",
			Help: "Lookups answered from the terminal record cache",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedqueue_result_cache_misses_total",
			Help: "Lookups that went to the result backend",
		},
	)

	// Result backend metrics
	backendOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedqueue_backend_operations_total",
			Help: "Total number of result backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	backendOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedqueue_backend_operation_duration_seconds",
			Help:    "Duration of result backend operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedqueue_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedqueue_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordFeedFetch records one feed download
func RecordFeedFetch(status string, duration float64) {
	feedFetchTotal.WithLabelValues(status).Inc()
	feedFetchDuration.WithLabelValues(status).Observe(duration)
}

// RecordFeedParse records how a downloaded feed was classified
func RecordFeedParse(outcome string) {
	feedParseTotal.WithLabelValues(outcome).Inc()
}

// RecordJobSubmitted records a job handed to the broker
func RecordJobSubmitted(task string) {
	jobsSubmittedTotal.WithLabelValues(task).Inc()
}

// RecordJob records a job reaching a terminal state
func RecordJob(task, status string, duration float64) {
	jobsTotal.WithLabelValues(task, status).Inc()
	jobDuration.WithLabelValues(task, status).Observe(duration)
}

// UpdateQueueDepth updates the in-process queue gauge
func UpdateQueueDepth(size int) {
	queueDepth.Set(float64(size))
}

// AddActiveWorkers moves the worker gauge by delta
func AddActiveWorkers(delta int) {
	activeWorkers.Add(float64(delta))
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordBackendOperation records result backend operation metrics
func RecordBackendOperation(backend, operation, status string, duration float64) {
	backendOperations.WithLabelValues(backend, operation, status).Inc()
	backendOperationDuration.WithLabelValues(backend, operation).Observe(duration)
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, route, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration)
}
