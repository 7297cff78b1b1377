package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the record feed service
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsCancelled prometheus.Counter
	SessionsFailed    prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Record metrics
	RecordsWritten      prometheus.Counter
	RecordWriteDuration prometheus.Histogram

	// Backpressure metrics
	BackpressureWaits        prometheus.Counter
	BackpressureWaitDuration prometheus.Histogram
	ClientDisconnects        prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feed_active_sessions",
			Help: "Current number of active stream sessions",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_sessions_started_total",
			Help: "Total number of stream sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_sessions_completed_total",
			Help: "Total number of stream sessions that ran to exhaustion",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_sessions_cancelled_total",
			Help: "Total number of stream sessions cancelled by client disconnect",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_sessions_failed_total",
			Help: "Total number of stream sessions terminated by an internal fault",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_session_duration_seconds",
			Help:    "Duration of stream sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}),

		// Record metrics
		RecordsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_records_written_total",
			Help: "Total number of records committed to clients",
		}),
		RecordWriteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_record_write_duration_seconds",
			Help:    "Time spent writing a single record to the transport",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~0.4s
		}),

		// Backpressure metrics
		BackpressureWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_backpressure_waits_total",
			Help: "Total number of writes that saturated the transport buffer",
		}),
		BackpressureWaitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_backpressure_wait_duration_seconds",
			Help:    "Time spent waiting for transport buffer capacity",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
		ClientDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feed_client_disconnects_total",
			Help: "Total number of client disconnects observed on live sessions",
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_http_requests_total",
			Help: "Total number of HTTP requests by method, endpoint and status",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feed_http_request_duration_seconds",
			Help:    "HTTP request duration by method and endpoint",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_http_errors_total",
			Help: "Total number of HTTP error responses by method, endpoint and class",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordHTTPRequest records metrics for a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordHTTPError records an HTTP error response
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
