// Package metrics provides Prometheus metrics for the basin monitoring portal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // bucket defaults

// Manager owns every collector exported by the portal.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Spreadsheet ingestion
	sheetFetches     *prometheus.CounterVec
	sheetFetchErrors *prometheus.CounterVec
	sheetFetchTime   *prometheus.HistogramVec
	sheetRows        *prometheus.GaugeVec
	sheetLastSuccess *prometheus.GaugeVec

	// Dataset cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec

	// Scheduled refresh
	refreshRuns     prometheus.Counter
	refreshFailures prometheus.Counter

	// Contact form pipeline
	contactAccepted  prometheus.Counter
	contactDuplicate prometheus.Counter
	contactRejected  *prometheus.CounterVec
	contactDelivered *prometheus.CounterVec
	contactFailed    *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors are registered on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "portal",
		subsystem:        "banabuiu",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // collector declarations
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)
	msBuckets := m.histogramBuckets

	m.sheetFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("sheet_fetches_total"),
		Help: "Spreadsheet CSV downloads by dataset",
	}, []string{"dataset"})

	m.sheetFetchErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("sheet_fetch_errors_total"),
		Help: "Failed spreadsheet downloads or parses by dataset and reason",
	}, []string{"dataset", "reason"})

	m.sheetFetchTime = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("sheet_fetch_duration_milliseconds"),
		Help:    "Spreadsheet download latency in milliseconds",
		Buckets: msBuckets,
	}, []string{"dataset"})

	m.sheetRows = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("sheet_rows"),
		Help: "Rows parsed from the latest successful download",
	}, []string{"dataset"})

	m.sheetLastSuccess = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("sheet_last_success_unix"),
		Help: "Unix time of the latest successful download",
	}, []string{"dataset"})

	m.cacheHits = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("cache_hits_total"),
		Help: "Dataset reads served from cache",
	}, []string{"dataset"})

	m.cacheMisses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("cache_misses_total"),
		Help: "Dataset reads that triggered a reload",
	}, []string{"dataset"})

	m.cacheInvalidations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("cache_invalidations_total"),
		Help: "Manual cache clears by dataset",
	}, []string{"dataset"})

	m.refreshRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("refresh_runs_total"),
		Help: "Scheduled refresh executions",
	})

	m.refreshFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("refresh_failures_total"),
		Help: "Scheduled refresh executions with at least one failed dataset",
	})

	m.contactAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("contact_accepted_total"),
		Help: "Contact submissions accepted for delivery",
	})

	m.contactDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("contact_duplicate_total"),
		Help: "Contact submissions dropped as duplicates",
	})

	m.contactRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("contact_rejected_total"),
		Help: "Contact submissions rejected by reason",
	}, []string{"reason"})

	m.contactDelivered = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("contact_delivered_total"),
		Help: "Contact submissions delivered by sink",
	}, []string{"sink"})

	m.contactFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("contact_delivery_failures_total"),
		Help: "Contact submission delivery failures by sink",
	}, []string{"sink"})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("queue_size"),
		Help: "Contact submissions waiting for delivery",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("queue_capacity"),
		Help: "Configured capacity of the contact queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("queue_utilization_ratio"),
		Help: "Queue size divided by capacity",
	})

	m.queueEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("queue_enqueued_total"),
		Help: "Submissions enqueued",
	})

	m.queueDequeued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("queue_dequeued_total"),
		Help: "Submissions dequeued by workers",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("queue_enqueue_errors_total"),
		Help: "Enqueue attempts rejected (full, closed or cancelled)",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("worker_count"),
		Help: "Running delivery workers",
	})

	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("worker_processing_latency_milliseconds"),
		Help:    "Time to deliver one submission to every sink",
		Buckets: msBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("http_requests_total"),
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("errors_by_component_total"),
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "HTTP errors by endpoint, method and type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("system_memory_bytes"),
		Help: "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name: m.name("system_goroutines"),
		Help: "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: constLabels,
		Name:    m.name("system_gc_pause_milliseconds"),
		Help:    "Average GC pause in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	})
}

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is the cadence for gauge updaters.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RecordSheetFetch records a successful download of a dataset.
func RecordSheetFetch(dataset string, latencyMs float64, rows int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sheetFetches.WithLabelValues(dataset).Inc()
	globalManager.sheetFetchTime.WithLabelValues(dataset).Observe(latencyMs)
	globalManager.sheetRows.WithLabelValues(dataset).Set(float64(rows))
	globalManager.sheetLastSuccess.WithLabelValues(dataset).Set(float64(time.Now().Unix()))
}

// RecordSheetFetchError records a failed download or parse.
func RecordSheetFetchError(dataset, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.sheetFetches.WithLabelValues(dataset).Inc()
	globalManager.sheetFetchErrors.WithLabelValues(dataset, reason).Inc()
}

// RecordCacheHit counts a read served from cache.
func RecordCacheHit(dataset string) {
	globalManager.cacheHits.WithLabelValues(dataset).Inc()
}

// RecordCacheMiss counts a read that triggered a reload.
func RecordCacheMiss(dataset string) {
	globalManager.cacheMisses.WithLabelValues(dataset).Inc()
}

// RecordCacheInvalidation counts a manual cache clear.
func RecordCacheInvalidation(dataset string) {
	globalManager.cacheInvalidations.WithLabelValues(dataset).Inc()
}

// RecordRefreshRun counts a scheduled refresh; failed reports whether any dataset failed.
func RecordRefreshRun(failed bool) {
	globalManager.refreshRuns.Inc()
	if failed {
		globalManager.refreshFailures.Inc()
	}
}

// RecordContactAccepted counts a submission accepted for delivery.
func RecordContactAccepted() { globalManager.contactAccepted.Inc() }

// RecordContactDuplicate counts a submission dropped as duplicate.
func RecordContactDuplicate() { globalManager.contactDuplicate.Inc() }

// RecordContactRejected counts a rejected submission.
func RecordContactRejected(reason string) {
	globalManager.contactRejected.WithLabelValues(reason).Inc()
}

// RecordContactDelivered counts a successful delivery to a sink.
func RecordContactDelivered(sink string) {
	globalManager.contactDelivered.WithLabelValues(sink).Inc()
}

// RecordContactDeliveryFailure counts a failed delivery to a sink.
func RecordContactDeliveryFailure(sink string) {
	globalManager.contactFailed.WithLabelValues(sink).Inc()
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the configured queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets size/capacity.
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }

// RecordQueueEnqueue counts an enqueue.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency observes delivery time in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error raised inside a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap bytes allocated.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry the portal's collectors live in.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
