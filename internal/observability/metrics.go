// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Acquisition metrics
	SnapshotsFetched   *prometheus.CounterVec
	FetchErrors        *prometheus.CounterVec
	ObservationsStored prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter

	// Live feed metrics
	FeedEventsReceived prometheus.Counter
	FeedEventsStored   prometheus.Counter
	FeedDecodeErrors   prometheus.Counter
	FeedReconnects     prometheus.Counter

	// Latency metrics
	SourceCallLatency *prometheus.HistogramVec
	DBQueryDuration   *prometheus.HistogramVec

	// Screen pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	WatchesScreened   prometheus.Gauge
	HotWatches        prometheus.Gauge

	// Output metrics
	ReportsGenerated *prometheus.CounterVec
	AlertsPublished  prometheus.Counter

	// Health metrics
	LastSuccessfulAcquisition prometheus.Gauge
	LastSuccessfulScreen      prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "watch_heat"
	}

	return &Metrics{
		// Acquisition metrics
		SnapshotsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "snapshots_fetched_total",
			Help:      "Total number of per-watch snapshots fetched, by source",
		}, []string{"source"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed source fetches, by source",
		}, []string{"source"}),
		ObservationsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "observations_stored_total",
			Help:      "Total number of daily observations written to storage",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "history_cache_hits_total",
			Help:      "Total number of fresh history cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "history_cache_misses_total",
			Help:      "Total number of stale or missing history cache lookups",
		}),

		// Live feed metrics
		FeedEventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of listing events received on the live feed",
		}),
		FeedEventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_stored_total",
			Help:      "Total number of listing events written to storage",
		}),
		FeedDecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "decode_errors_total",
			Help:      "Total number of feed messages that failed to decode",
		}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of live feed reconnect attempts",
		}),

		// Latency metrics
		SourceCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "source_call_duration_seconds",
			Help:      "Source API call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Database query latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"database", "operation"}),

		// Screen pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline phase runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"phase"}),
		WatchesScreened: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "watches_screened",
			Help:      "Number of watches in the most recent screen",
		}),
		HotWatches: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "hot_watches",
			Help:      "Number of hot watches in the most recent screen",
		}),

		// Output metrics
		ReportsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "generated_total",
			Help:      "Total number of reports generated, by format",
		}, []string{"format"}),
		AlertsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "published_total",
			Help:      "Total number of hot-watch alerts published",
		}),

		// Health metrics
		LastSuccessfulAcquisition: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_acquisition_timestamp",
			Help:      "Unix timestamp of the last successful acquisition run",
		}),
		LastSuccessfulScreen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_screen_timestamp",
			Help:      "Unix timestamp of the last successful screen run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the global metrics instance used by package-level helpers.
var DefaultMetrics = NewMetrics("")

// RecordFetch records one source fetch attempt.
func RecordFetch(source string, seconds float64, err error) {
	DefaultMetrics.SourceCallLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		DefaultMetrics.FetchErrors.WithLabelValues(source).Inc()
		return
	}
	DefaultMetrics.SnapshotsFetched.WithLabelValues(source).Inc()
}

// RecordObservationsStored records daily observations written to storage.
func RecordObservationsStored(n int) {
	DefaultMetrics.ObservationsStored.Add(float64(n))
}

// RecordCacheHit records a fresh history cache hit.
func RecordCacheHit() {
	DefaultMetrics.CacheHits.Inc()
}

// RecordCacheMiss records a stale or missing history cache lookup.
func RecordCacheMiss() {
	DefaultMetrics.CacheMisses.Inc()
}

// RecordFeedEvent records one listing event received on the live feed.
func RecordFeedEvent() {
	DefaultMetrics.FeedEventsReceived.Inc()
}

// RecordFeedStored records listing events written to storage.
func RecordFeedStored(n int) {
	DefaultMetrics.FeedEventsStored.Add(float64(n))
}

// RecordFeedDecodeError records a feed message that failed to decode.
func RecordFeedDecodeError() {
	DefaultMetrics.FeedDecodeErrors.Inc()
}

// RecordFeedReconnect records a live feed reconnect attempt.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
}

// RecordPipelineRun records a pipeline phase run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordScreen records the outcome of a screen run.
func RecordScreen(total, hot int) {
	DefaultMetrics.WatchesScreened.Set(float64(total))
	DefaultMetrics.HotWatches.Set(float64(hot))
	DefaultMetrics.LastSuccessfulScreen.SetToCurrentTime()
}

// RecordAcquisition marks a successful acquisition run.
func RecordAcquisition() {
	DefaultMetrics.LastSuccessfulAcquisition.SetToCurrentTime()
}

// RecordReport records a generated report.
func RecordReport(format string) {
	DefaultMetrics.ReportsGenerated.WithLabelValues(format).Inc()
}

// RecordAlerts records published hot-watch alerts.
func RecordAlerts(n int) {
	DefaultMetrics.AlertsPublished.Add(float64(n))
}
