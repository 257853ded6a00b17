// Package metrics exposes Prometheus collectors for the telemetry service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "telemetry"

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// HTTPRateLimited counts ingest requests rejected by the rate limiter.
	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total ingest requests rejected by rate limiting",
		},
	)
)

// Store metrics
var (
	// EventsIngested counts accepted telemetry events by type.
	EventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_ingested_total",
			Help:      "Total telemetry events appended to the store",
		},
		[]string{"type"},
	)

	// EventsRejected counts events failing validation.
	EventsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "events_rejected_total",
			Help:      "Total telemetry events rejected by validation",
		},
	)

	// RecordsStored tracks retained records by kind (metric, log).
	RecordsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records",
			Help:      "Records currently retained in memory",
		},
		[]string{"kind"},
	)

	// RecordsEvicted counts records dropped by retention limits.
	RecordsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records_evicted_total",
			Help:      "Total records evicted by retention limits",
		},
		[]string{"kind"},
	)
)

// Alerting metrics
var (
	// AlertsActive tracks alert instances from the latest evaluation.
	AlertsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active",
			Help:      "Alert instances active in the latest evaluation",
		},
	)

	// EvaluationDuration tracks periodic alert evaluation latency.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "evaluation_duration_seconds",
			Help:      "Alert evaluation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// NotificationsPublished counts alert transitions by channel and state.
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "notifications_total",
			Help:      "Alert transitions published to notification channels",
		},
		[]string{"channel", "state"},
	)

	// NotificationErrors counts failed transition publishes by channel.
	NotificationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "notification_errors_total",
			Help:      "Alert transitions that failed to publish",
		},
		[]string{"channel"},
	)
)
