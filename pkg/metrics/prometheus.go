package metrics

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager holds every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer
	collecting       atomic.Bool

	// Judging
	reviewsSubmitted *prometheus.CounterVec
	reviewsRejected  *prometheus.CounterVec
	allocationRuns   *prometheus.CounterVec
	assignmentWrites *prometheus.CounterVec
	coverageDeficit  *prometheus.GaugeVec
	resultsLatency   *prometheus.HistogramVec
	signIns          *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hackjudge",
		subsystem:        "",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.reviewsSubmitted = m.counterVec("reviews_submitted_total",
		"Reviews accepted and stored, by round", "round")
	m.reviewsRejected = m.counterVec("reviews_rejected_total",
		"Review submissions rejected, by reason", "reason")
	m.allocationRuns = m.counterVec("allocation_runs_total",
		"Allocator operations run, by operation", "op")
	m.assignmentWrites = m.counterVec("assignment_writes_total",
		"Judge assignment set writes, by result", "result")
	m.coverageDeficit = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "coverage_deficit_teams",
		Help:        "Teams below their judge coverage target after the last allocation, by round",
		ConstLabels: m.constLabels,
	}, []string{"round"})
	m.resultsLatency = m.histogramVec("results_compute_duration_milliseconds",
		"Time to aggregate and rank results in milliseconds", "round")
	m.signIns = m.counterVec("sign_in_attempts_total",
		"Sign-in attempts, by result", "result")

	m.storeLatency = m.histogramVec("store_operation_duration_milliseconds",
		"Document store operation latency in milliseconds", "driver", "op")
	m.storeErrors = m.counterVec("store_errors_total",
		"Document store operation failures", "driver", "op")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total",
		"Errors by component and kind", "component", "kind")

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "system_memory_bytes",
		Help:      "Heap memory in use in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "system_goroutines",
		Help:      "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Most recent GC pause in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
	})
}

// RecordReviewSubmitted counts a stored review.
func RecordReviewSubmitted(round string) {
	globalManager.reviewsSubmitted.WithLabelValues(round).Inc()
}

// RecordReviewRejected counts a refused review submission.
func RecordReviewRejected(reason string) {
	globalManager.reviewsRejected.WithLabelValues(reason).Inc()
}

// RecordAllocationRun counts an allocator operation.
func RecordAllocationRun(op string) {
	globalManager.allocationRuns.WithLabelValues(op).Inc()
}

// RecordAssignmentWrite counts a judge set write, result is "ok", "skipped"
// or "failed".
func RecordAssignmentWrite(result string) {
	globalManager.assignmentWrites.WithLabelValues(result).Inc()
}

// UpdateCoverageDeficit sets the number of under-covered teams for a round.
func UpdateCoverageDeficit(round string, teams int) {
	globalManager.coverageDeficit.WithLabelValues(round).Set(float64(teams))
}

// RecordResultsLatency records how long a results computation took.
func RecordResultsLatency(round string, latencyMs float64) {
	globalManager.resultsLatency.WithLabelValues(round).Observe(latencyMs)
}

// RecordSignIn counts a sign-in attempt.
func RecordSignIn(result string) {
	globalManager.signIns.WithLabelValues(result).Inc()
}

// RecordStoreLatency records a document store operation.
func RecordStoreLatency(driver, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// RecordStoreError counts a failed document store operation.
func RecordStoreError(driver, op string) {
	globalManager.storeErrors.WithLabelValues(driver, op).Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and kind labels.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SampleRuntime reads the Go runtime once and updates the system gauges.
func SampleRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.HeapAlloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		RecordSystemGCPauseTime(float64(pause) / float64(time.Millisecond))
	}
}

// StartRuntimeCollector samples runtime gauges every refresh interval
// until ctx is done. Only one collector may run at a time.
func StartRuntimeCollector(ctx context.Context) error {
	m := globalManager
	if !m.collecting.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go func() {
		defer m.collecting.Store(false)
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()
		SampleRuntime()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				SampleRuntime()
			}
		}
	}()
	return nil
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
