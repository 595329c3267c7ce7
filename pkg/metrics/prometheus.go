// Package metrics provides Prometheus metrics for the stcurve service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Compression
	trajectoriesCompressed prometheus.Counter
	pointsIn               prometheus.Counter
	pointsOut              prometheus.Counter
	curvatureEvaluations   prometheus.Counter
	compressionRate        prometheus.Histogram
	compressionLatency     prometheus.Histogram

	// Jobs
	jobsSubmitted prometheus.Counter
	jobsDuplicate prometheus.Counter
	jobsRejected  *prometheus.CounterVec

	// Queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDequeued prometheus.Counter
	queueErrors   *prometheus.CounterVec

	// Workers
	workerCount   prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  *prometheus.CounterVec

	// Store
	storedResults prometheus.Gauge
	storeLatency  *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry *prometheus.Registry //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry, which GetRegistry returns from then on. Call it at startup,
// before any metric is recorded or a handler is built on GetRegistry.
func Init(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
	globalManager = m
	return m
}

// NewManager creates a new metrics manager registering on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "stcurve",
		subsystem:      "compressor",
		latencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:    map[string]string{},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.trajectoriesCompressed = m.counter("trajectories_compressed_total", "Total number of compressed trajectories")
	m.pointsIn = m.counter("points_in_total", "Total number of points received for compression")
	m.pointsOut = m.counter("points_out_total", "Total number of points retained after compression")
	m.curvatureEvaluations = m.counter("curvature_evaluations_total", "Total number of three-point curvature evaluations")
	m.compressionRate = m.histogram("compression_rate", "Ratio of input to output points per trajectory",
		[]float64{1, 1.25, 1.5, 2, 3, 5, 10, 20, 50, 100})
	m.compressionLatency = m.histogram("compression_latency_milliseconds", "Time spent compressing one trajectory", m.latencyBuckets)

	m.jobsSubmitted = m.counter("jobs_submitted_total", "Total number of accepted asynchronous jobs")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Total number of duplicate trajectory submissions")
	m.jobsRejected = m.counterVec("jobs_rejected_total", "Total number of rejected submissions by reason", "reason")

	m.queueSize = m.gauge("queue_size", "Current number of queued jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued jobs")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Total number of enqueued jobs")
	m.queueDequeued = m.counter("queue_dequeued_total", "Total number of dequeued jobs")
	m.queueErrors = m.counterVec("queue_enqueue_errors_total", "Total number of failed enqueues by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Number of compression workers")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time spent processing one job", m.latencyBuckets)
	m.workerErrors = m.counterVec("worker_errors_total", "Total number of worker failures by stage", "stage")

	m.storedResults = m.gauge("stored_results", "Number of compression results held by the store")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency", m.latencyBuckets, "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.latencyBuckets, "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "Total number of HTTP error responses", "endpoint", "error_type")

	m.memoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.goroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.gcPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time", m.latencyBuckets)
}

// RecordCompression records one finished compression.
func RecordCompression(in, out int, latencyMs float64) {
	globalManager.RecordCompression(in, out, latencyMs)
}

// RecordCompression records one finished compression on m.
func (m *Manager) RecordCompression(in, out int, latencyMs float64) {
	m.trajectoriesCompressed.Inc()
	m.pointsIn.Add(float64(in))
	m.pointsOut.Add(float64(out))
	if in >= 3 {
		m.curvatureEvaluations.Add(float64(in - 2))
	}
	if out > 0 {
		m.compressionRate.Observe(float64(in) / float64(out))
	}
	m.compressionLatency.Observe(latencyMs)
}

// RecordJobSubmitted increments the accepted jobs counter.
func RecordJobSubmitted() { globalManager.jobsSubmitted.Inc() }

// RecordJobDuplicate increments the duplicate submissions counter.
func RecordJobDuplicate() { globalManager.jobsDuplicate.Inc() }

// RecordJobRejected increments the rejected submissions counter for reason.
func RecordJobRejected(reason string) { globalManager.jobsRejected.WithLabelValues(reason).Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueued counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeued counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the failed enqueue counter for reason.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerLatency records the processing time of one job.
func RecordWorkerLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError increments the worker error counter for stage.
func RecordWorkerError(stage string) { globalManager.workerErrors.WithLabelValues(stage).Inc() }

// UpdateStoredResults sets the number of stored results.
func UpdateStoredResults(count int) { globalManager.storedResults.Set(float64(count)) }

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError increments the HTTP error counter.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.memoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.goroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.gcPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry every collector is registered on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
