// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Processing metrics
	FilesProcessed   *prometheus.CounterVec
	RecordsProcessed *prometheus.CounterVec
	FileDuration     *prometheus.HistogramVec

	// Outbox metrics
	PublishAttempts *prometheus.CounterVec

	// Watcher metrics
	WorkQueueDepth prometheus.Gauge
	WorkersBusy    prometheus.Gauge
	FilesDeferred  prometheus.Counter
	WorkerPanics   prometheus.Counter
	TrackedFiles   *prometheus.GaugeVec

	// Store metrics
	StoreCallDuration *prometheus.HistogramVec
	StoreCallErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulFile prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_ingest"
	}

	return &Metrics{
		// Processing metrics
		FilesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "files_total",
			Help:      "Total number of files processed by final status",
		}, []string{"status"}),
		RecordsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "records_total",
			Help:      "Total number of records processed by outcome",
		}, []string{"outcome"}),
		FileDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "processing",
			Name:      "file_duration_seconds",
			Help:      "Time to process one file by format",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"format"}),

		// Outbox metrics
		PublishAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_attempts_total",
			Help:      "Total number of queue publish attempts by result",
		}, []string{"result"}),

		// Watcher metrics
		WorkQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "queue_depth",
			Help:      "Number of claimed files waiting for a worker",
		}),
		WorkersBusy: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "workers_busy",
			Help:      "Number of workers currently processing a file",
		}),
		FilesDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "files_deferred_total",
			Help:      "Total number of claims released because the work queue was full",
		}),
		WorkerPanics: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "worker_panics_total",
			Help:      "Total number of panics recovered in workers",
		}),
		TrackedFiles: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "tracked_files",
			Help:      "Number of files in the tracker by state",
		}, []string{"state"}),

		// Store metrics
		StoreCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "Store call duration by store and operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "call_errors_total",
			Help:      "Total number of failed store calls by store and operation",
		}, []string{"store", "operation"}),

		// Health metrics
		LastSuccessfulFile: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_file_timestamp",
			Help:      "Unix timestamp of the last file processed with status SUCCESS",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// Record outcome labels.
const (
	OutcomePersisted = "persisted"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// RecordFile records a processed file.
func RecordFile(status, format string, elapsed time.Duration) {
	DefaultMetrics.FilesProcessed.WithLabelValues(status).Inc()
	if format == "" {
		format = "unknown"
	}
	DefaultMetrics.FileDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	if status == "SUCCESS" {
		DefaultMetrics.LastSuccessfulFile.SetToCurrentTime()
	}
}

// RecordRecord records the outcome of one record.
func RecordRecord(outcome string) {
	DefaultMetrics.RecordsProcessed.WithLabelValues(outcome).Inc()
}

// RecordPublish records a publish attempt.
func RecordPublish(err error) {
	if err != nil {
		DefaultMetrics.PublishAttempts.WithLabelValues("failed").Inc()
		return
	}
	DefaultMetrics.PublishAttempts.WithLabelValues("published").Inc()
}

// RecordStoreCall records store call metrics.
func RecordStoreCall(store, operation string, elapsed time.Duration, err error) {
	DefaultMetrics.StoreCallDuration.WithLabelValues(store, operation).Observe(elapsed.Seconds())
	if err != nil {
		DefaultMetrics.StoreCallErrors.WithLabelValues(store, operation).Inc()
	}
}

// UpdateWorkQueue updates the watcher queue and worker gauges.
func UpdateWorkQueue(depth, busy int) {
	DefaultMetrics.WorkQueueDepth.Set(float64(depth))
	DefaultMetrics.WorkersBusy.Set(float64(busy))
}

// RecordDeferred increments the deferred claims counter.
func RecordDeferred() {
	DefaultMetrics.FilesDeferred.Inc()
}

// RecordWorkerPanic increments the recovered panics counter.
func RecordWorkerPanic() {
	DefaultMetrics.WorkerPanics.Inc()
}

// UpdateTrackedFiles updates the tracker size gauges.
func UpdateTrackedFiles(processing, processed int) {
	DefaultMetrics.TrackedFiles.WithLabelValues("processing").Set(float64(processing))
	DefaultMetrics.TrackedFiles.WithLabelValues("processed").Set(float64(processed))
}
