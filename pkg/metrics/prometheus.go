// Package metrics provides Prometheus metrics for the vigil analytics pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for a vigil process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Frame pipeline
	framesProcessed prometheus.Counter
	framesMissed    prometheus.Counter
	framesDegraded  prometheus.Counter
	frameLatency    prometheus.Histogram

	// Detectors
	detectorLatency *prometheus.HistogramVec
	detectorErrors  *prometheus.CounterVec

	// Tracks and stabilization
	activeTracks    prometheus.Gauge
	tracksCreated   prometheus.Counter
	tracksDestroyed prometheus.Counter
	classLocks      prometheus.Counter
	classUnlocks    prometheus.Counter

	// Baseline and anomalies
	anomalyScore     prometheus.Gauge
	anomalies        *prometheus.CounterVec
	learningComplete prometheus.Gauge

	// Alert state machine
	pipelineState    prometheus.Gauge
	stateTransitions *prometheus.CounterVec
	alerts           *prometheus.CounterVec

	// Slow detector path
	slowQueueSize     prometheus.Gauge
	slowQueueCapacity prometheus.Gauge
	slowQueueDropped  prometheus.Counter
	slowResults       *prometheus.CounterVec

	// Event log
	eventLogSize prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vigil",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
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
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.framesProcessed = m.counter("frames_processed_total", "Total number of frames run through the pipeline")
	m.framesMissed = m.counter("frames_missed_total", "Total number of frames the source failed to deliver")
	m.framesDegraded = m.counter("frames_degraded_total", "Total number of frames processed with a detector failure or timeout")
	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "frame_latency_milliseconds",
		Help:        "Per-frame processing latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.detectorLatency = m.histogramVec("detector_latency_milliseconds", "Detector call latency in milliseconds", "detector")
	m.detectorErrors = m.counterVec("detector_errors_total", "Detector errors and timeouts", "detector", "reason")

	m.activeTracks = m.gauge("active_tracks", "Number of live tracks")
	m.tracksCreated = m.counter("tracks_created_total", "Total number of tracks created")
	m.tracksDestroyed = m.counter("tracks_destroyed_total", "Total number of tracks destroyed after the grace period")
	m.classLocks = m.counter("class_locks_total", "Total number of class locks")
	m.classUnlocks = m.counter("class_unlocks_total", "Total number of class unlocks")

	m.anomalyScore = m.gauge("anomaly_score", "Combined anomaly score of the latest frame")
	m.anomalies = m.counterVec("anomalies_total", "Anomaly events emitted", "type", "severity")
	m.learningComplete = m.gauge("learning_complete", "1 once the behavioral baseline is warmed")

	m.pipelineState = m.gauge("state", "Pipeline state: 0 idle, 1 motion, 2 alert")
	m.stateTransitions = m.counterVec("state_transitions_total", "Pipeline state transitions", "from", "to")
	m.alerts = m.counterVec("alerts_total", "Alerts raised by cause", "cause")

	m.slowQueueSize = m.gauge("slow_queue_size", "Pending slow detector requests")
	m.slowQueueCapacity = m.gauge("slow_queue_capacity", "Slow detector request queue capacity")
	m.slowQueueDropped = m.counter("slow_queue_dropped_total", "Slow detector requests dropped because the queue was full")
	m.slowResults = m.counterVec("slow_results_total", "Slow detector results by reconciliation outcome", "outcome")

	m.eventLogSize = m.gauge("event_log_size", "Entries held in the recent event log")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// Frame pipeline.

// RecordFrameProcessed counts a processed frame and its latency.
func RecordFrameProcessed(latencyMs float64) {
	globalManager.framesProcessed.Inc()
	globalManager.frameLatency.Observe(latencyMs)
}

// RecordFrameMissed counts a frame the source could not deliver.
func RecordFrameMissed() {
	globalManager.framesMissed.Inc()
}

// RecordFrameDegraded counts a frame processed with a detector failure.
func RecordFrameDegraded() {
	globalManager.framesDegraded.Inc()
}

// Detectors.

// RecordDetectorLatency records a detector call latency.
func RecordDetectorLatency(detector string, latencyMs float64) {
	globalManager.detectorLatency.WithLabelValues(detector).Observe(latencyMs)
}

// RecordDetectorError counts a detector error; reason is "error" or "timeout".
func RecordDetectorError(detector, reason string) {
	globalManager.detectorErrors.WithLabelValues(detector, reason).Inc()
}

// Tracks.

// UpdateActiveTracks sets the number of live tracks.
func UpdateActiveTracks(count int) {
	globalManager.activeTracks.Set(float64(count))
}

// RecordTracksCreated adds created tracks.
func RecordTracksCreated(n int) {
	globalManager.tracksCreated.Add(float64(n))
}

// RecordTracksDestroyed adds destroyed tracks.
func RecordTracksDestroyed(n int) {
	globalManager.tracksDestroyed.Add(float64(n))
}

// RecordClassLock counts a class lock.
func RecordClassLock() {
	globalManager.classLocks.Inc()
}

// RecordClassUnlock counts a class unlock.
func RecordClassUnlock() {
	globalManager.classUnlocks.Inc()
}

// Baseline.

// UpdateAnomalyScore sets the latest combined anomaly score.
func UpdateAnomalyScore(score float64) {
	globalManager.anomalyScore.Set(score)
}

// RecordAnomaly counts an emitted anomaly event.
func RecordAnomaly(anomalyType, severity string) {
	globalManager.anomalies.WithLabelValues(anomalyType, severity).Inc()
}

// UpdateLearningComplete reflects the baseline warm-up flag.
func UpdateLearningComplete(done bool) {
	v := 0.0
	if done {
		v = 1
	}
	globalManager.learningComplete.Set(v)
}

// Alert state machine.

// UpdatePipelineState sets the numeric pipeline state.
func UpdatePipelineState(state int) {
	globalManager.pipelineState.Set(float64(state))
}

// RecordStateTransition counts a state transition.
func RecordStateTransition(from, to string) {
	globalManager.stateTransitions.WithLabelValues(from, to).Inc()
}

// RecordAlert counts an alert by its cause.
func RecordAlert(cause string) {
	globalManager.alerts.WithLabelValues(cause).Inc()
}

// Slow detector path.

// UpdateSlowQueueSize sets the number of pending slow requests.
func UpdateSlowQueueSize(size int) {
	globalManager.slowQueueSize.Set(float64(size))
}

// UpdateSlowQueueCapacity sets the slow request queue capacity.
func UpdateSlowQueueCapacity(capacity int) {
	globalManager.slowQueueCapacity.Set(float64(capacity))
}

// RecordSlowQueueDropped counts a dropped slow request.
func RecordSlowQueueDropped() {
	globalManager.slowQueueDropped.Inc()
}

// RecordSlowResults counts slow detections by outcome: applied, merged,
// discarded or stale.
func RecordSlowResults(outcome string, n int) {
	if n <= 0 {
		return
	}
	globalManager.slowResults.WithLabelValues(outcome).Add(float64(n))
}

// UpdateEventLogSize sets the number of entries in the recent event log.
func UpdateEventLogSize(size int) {
	globalManager.eventLogSize.Set(float64(size))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Configure rebuilds the global metrics on a fresh registry with opts.
// Call it once at process start, before anything is recorded or served.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
