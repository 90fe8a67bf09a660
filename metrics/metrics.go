// Package metrics provides Prometheus metrics for reader-sync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts finished sync sessions by kind and status.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "sessions_total",
			Help:      "Total number of finished sync sessions",
		},
		[]string{"kind", "status"},
	)

	// SessionDuration measures end-to-end session duration.
	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "readersync",
			Name:      "session_duration_seconds",
			Help:      "Duration of sync sessions in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	// ConflictsTotal counts detected conflicts by type.
	ConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "conflicts_total",
			Help:      "Total number of detected sync conflicts",
		},
		[]string{"conflict_type"},
	)

	// ArticlesTotal counts article writes by operation.
	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "articles_total",
			Help:      "Total number of article operations applied locally",
		},
		[]string{"operation"},
	)

	// FeedsTotal counts feed mirror writes by operation.
	FeedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "feeds_total",
			Help:      "Total number of feed operations applied locally",
		},
		[]string{"operation"},
	)

	// BreakerState tracks the state of each circuit breaker
	// (0 = closed, 1 = open, 2 = half_open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "readersync",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0 = closed, 1 = open, 2 = half_open)",
		},
		[]string{"breaker"},
	)

	// BreakerRejections counts calls rejected while a breaker was open.
	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "breaker_rejections_total",
			Help:      "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)

	// QuotaUsage tracks the last header-derived usage per zone.
	QuotaUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "readersync",
			Name:      "quota_usage",
			Help:      "Remote API quota usage per zone from response headers",
		},
		[]string{"zone"},
	)

	// QuotaLimit tracks the last header-derived limit per zone.
	QuotaLimit = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "readersync",
			Name:      "quota_limit",
			Help:      "Remote API quota limit per zone from response headers",
		},
		[]string{"zone"},
	)

	// ExtractionTotal counts content extraction outcomes.
	ExtractionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "extraction_total",
			Help:      "Total number of content extraction attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RetentionDeleted counts rows removed by the retention service.
	RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "retention_deleted_total",
			Help:      "Total number of rows deleted by retention",
		},
		[]string{"entity"},
	)

	// RemoteRequests counts remote API calls by endpoint and result.
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "readersync",
			Name:      "remote_requests_total",
			Help:      "Total number of remote API requests",
		},
		[]string{"endpoint", "status"},
	)
)

// RecordSession records a finished session.
func RecordSession(kind, status string, seconds float64) {
	SessionsTotal.WithLabelValues(kind, status).Inc()
	SessionDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordConflict records one detected conflict.
func RecordConflict(conflictType string) {
	ConflictsTotal.WithLabelValues(conflictType).Inc()
}

// RecordArticles records article operations applied to the local store.
func RecordArticles(operation string, count int) {
	ArticlesTotal.WithLabelValues(operation).Add(float64(count))
}

// RecordFeeds records feed operations applied to the local store.
func RecordFeeds(operation string, count int) {
	FeedsTotal.WithLabelValues(operation).Add(float64(count))
}

// SetBreakerState sets the state gauge for a named breaker.
func SetBreakerState(breaker string, state int) {
	BreakerState.WithLabelValues(breaker).Set(float64(state))
}

// RecordBreakerRejection records a call rejected by an open breaker.
func RecordBreakerRejection(breaker string) {
	BreakerRejections.WithLabelValues(breaker).Inc()
}

// SetZoneQuota sets the usage and limit gauges for a zone.
func SetZoneQuota(zone string, usage, limit int64) {
	QuotaUsage.WithLabelValues(zone).Set(float64(usage))
	QuotaLimit.WithLabelValues(zone).Set(float64(limit))
}

// RecordExtraction records one extraction attempt outcome.
func RecordExtraction(outcome string) {
	ExtractionTotal.WithLabelValues(outcome).Inc()
}

// RecordRetentionDeleted records rows removed by retention.
func RecordRetentionDeleted(entity string, count int) {
	RetentionDeleted.WithLabelValues(entity).Add(float64(count))
}

// RecordRemoteRequest records one remote API request.
func RecordRemoteRequest(endpoint, status string) {
	RemoteRequests.WithLabelValues(endpoint, status).Inc()
}
