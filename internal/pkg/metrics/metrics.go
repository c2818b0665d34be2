// Package metrics provides Prometheus metrics for the crawl engine and its
// REST trigger surface. Enterprise-grade: scrapeable /metrics; runbooks and
// dashboards can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "inventory_crawler"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ResourcesCrawledTotal counts resources visited, by type.
	ResourcesCrawledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_crawled_total",
			Help:      "Total number of resources visited, by resource type.",
		},
		[]string{"type"},
	)

	// WarningsTotal counts accumulated warnings, by resource type.
	WarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Total number of warnings recorded during crawl runs, by resource type.",
		},
		[]string{"type"},
	)

	// SideBandFetchTotal counts side-band fetch calls by name and outcome.
	SideBandFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_band_fetch_total",
			Help:      "Total number of side-band fetch calls by fetch name and outcome.",
		},
		[]string{"name", "outcome"}, // outcome: success, benign, error
	)

	// DispatchQueueDepth tracks how many dispatched subtree tasks are
	// currently queued or running on the dispatch pool.
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Number of dispatched subtree tasks currently queued or running.",
		},
	)

	// CrawlDurationSeconds is the full-run wall-clock duration histogram.
	CrawlDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Full crawl run duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		},
	)

	// DBQueryDurationSeconds tracks database query latency by operation type.
	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~512ms
		},
		[]string{"operation"}, // operation: repository method, e.g. create_run, save_resource, list_warnings
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=open, 2=half-open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open).",
		},
		[]string{"cluster_id"},
	)

	// CircuitBreakerTransitionsTotal counts circuit breaker state transitions.
	CircuitBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions.",
		},
		[]string{"cluster_id", "from_state", "to_state"},
	)

	// CircuitBreakerFailuresTotal counts circuit breaker failures.
	CircuitBreakerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_failures_total",
			Help:      "Total number of circuit breaker failures.",
		},
		[]string{"cluster_id"},
	)
)
