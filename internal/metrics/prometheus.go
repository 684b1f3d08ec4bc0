package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the AyuTrace service
type PrometheusMetrics struct {
	// Ledger metrics
	LedgerAppendsTotal      *prometheus.CounterVec
	LedgerAppendDuration    *prometheus.HistogramVec
	ChainVerificationsTotal *prometheus.CounterVec
	AnchorFailuresTotal     *prometheus.CounterVec

	// Compliance metrics
	QualityTestsTotal     *prometheus.CounterVec
	ProvenanceTracesTotal *prometheus.CounterVec
	ThresholdCacheLookups *prometheus.CounterVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		LedgerAppendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_ledger_appends_total",
				Help: "Total number of ledger append attempts",
			},
			[]string{"event_type", "status"},
		),

		LedgerAppendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayutrace_ledger_append_duration_seconds",
				Help:    "Time spent appending a ledger entry",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),

		ChainVerificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_chain_verifications_total",
				Help: "Total number of lot chain verifications",
			},
			[]string{"result"},
		),

		AnchorFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_anchor_failures_total",
				Help: "Total number of ledger entries that could not be anchored externally",
			},
			[]string{"anchor"},
		),

		QualityTestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_quality_tests_total",
				Help: "Total number of evaluated quality tests",
			},
			[]string{"test_type", "status"},
		),

		ProvenanceTracesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_provenance_traces_total",
				Help: "Total number of provenance traces generated",
			},
			[]string{"overall_status"},
		),

		ThresholdCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_threshold_cache_lookups_total",
				Help: "Threshold cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayutrace_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		NotificationsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_notifications_sent_total",
				Help: "Total number of notifications sent",
			},
			[]string{"channel", "type"},
		),

		NotificationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_notification_failures_total",
				Help: "Total number of failed notifications",
			},
			[]string{"channel", "type"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ayutrace_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ayutrace_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ayutrace_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ayutrace_component_health",
				Help: "Health status of application components (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ayutrace_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ayutrace_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// RecordLedgerAppend records an append attempt and its latency
func (m *PrometheusMetrics) RecordLedgerAppend(eventType, status string, duration time.Duration) {
	m.LedgerAppendsTotal.WithLabelValues(eventType, status).Inc()
	m.LedgerAppendDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordChainVerification records a verification outcome ("valid" or "invalid")
func (m *PrometheusMetrics) RecordChainVerification(result string) {
	m.ChainVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordAnchorFailure records an entry that an anchor rejected
func (m *PrometheusMetrics) RecordAnchorFailure(anchor string) {
	m.AnchorFailuresTotal.WithLabelValues(anchor).Inc()
}

// RecordQualityTest records an evaluated quality test
func (m *PrometheusMetrics) RecordQualityTest(testType, status string) {
	m.QualityTestsTotal.WithLabelValues(testType, status).Inc()
}

// RecordProvenanceTrace records a generated trace
func (m *PrometheusMetrics) RecordProvenanceTrace(overallStatus string) {
	m.ProvenanceTracesTotal.WithLabelValues(overallStatus).Inc()
}

// RecordThresholdCacheLookup records a threshold cache "hit" or "miss"
func (m *PrometheusMetrics) RecordThresholdCacheLookup(outcome string) {
	m.ThresholdCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordNotificationSent records a sent notification
func (m *PrometheusMetrics) RecordNotificationSent(channel, notificationType string) {
	m.NotificationsSentTotal.WithLabelValues(channel, notificationType).Inc()
}

// RecordNotificationFailure records a failed notification
func (m *PrometheusMetrics) RecordNotificationFailure(channel, notificationType string) {
	m.NotificationFailuresTotal.WithLabelValues(channel, notificationType).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateComponentHealth updates the health status of a component
func (m *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	m.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
