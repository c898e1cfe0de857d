// Package metrics provides Prometheus metrics for the simon relay service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Broker
	brokerConnected   prometheus.Gauge
	brokerTransitions *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	subscribeFailures *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	publishes         *prometheus.CounterVec
	publishLatency    *prometheus.HistogramVec
	recentScores      prometheus.Gauge
	latestScore       prometheus.Gauge
	legacyScore       prometheus.Gauge

	// Persistence pipeline
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueEnqueued   prometheus.Counter
	queueRejected   *prometheus.CounterVec
	workerCount     prometheus.Gauge
	storeOperations *prometheus.CounterVec
	storeLatency    *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "simon",
		subsystem:        "relay",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.brokerConnected = auto.NewGauge(m.gaugeOpts("broker_connected", "1 when the broker session is up, 0 otherwise"))
	m.brokerTransitions = auto.NewCounterVec(m.counterOpts("broker_transitions_total", "Connection state transitions by target state"), []string{"state"})
	m.reconnectAttempts = auto.NewCounter(m.counterOpts("broker_reconnect_attempts_total", "Dial attempts made after the first connection attempt"))
	m.subscribeFailures = auto.NewCounterVec(m.counterOpts("broker_subscribe_failures_total", "Failed subscriptions by topic"), []string{"topic"})
	m.messagesReceived = auto.NewCounterVec(m.counterOpts("messages_received_total", "Inbound broker messages by topic and decoded kind"), []string{"topic", "kind"})
	m.messagesDropped = auto.NewCounterVec(m.counterOpts("messages_dropped_total", "Inbound broker messages discarded by reason"), []string{"reason"})
	m.publishes = auto.NewCounterVec(m.counterOpts("publishes_total", "Outbound publishes by topic and result"), []string{"topic", "result"})
	m.publishLatency = auto.NewHistogramVec(m.histogramOpts("publish_latency_milliseconds", "Publish completion latency in milliseconds"), []string{"topic"})
	m.recentScores = auto.NewGauge(m.gaugeOpts("recent_scores", "Number of scores held in the recent window"))
	m.latestScore = auto.NewGauge(m.gaugeOpts("latest_score", "Most recently received structured score"))
	m.legacyScore = auto.NewGauge(m.gaugeOpts("legacy_score", "Most recently received legacy numeric score"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Score events waiting to be persisted"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Capacity of the persistence queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Score events accepted by the persistence queue"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("queue_rejected_total", "Score events rejected by the persistence queue by reason"), []string{"reason"})
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Persistence workers running"))
	m.storeOperations = auto.NewCounterVec(m.counterOpts("store_operations_total", "Store operations by driver, operation and result"), []string{"driver", "op", "result"})
	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds"), []string{"driver", "op"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status code"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Broker metrics.

// RecordBrokerTransition records a connection state transition.
func RecordBrokerTransition(connected bool) {
	globalManager.brokerConnected.Set(boolToFloat(connected))
	state := "disconnected"
	if connected {
		state = "connected"
	}
	globalManager.brokerTransitions.WithLabelValues(state).Inc()
}

// RecordReconnectAttempt increments the reconnect attempts counter.
func RecordReconnectAttempt() {
	globalManager.reconnectAttempts.Inc()
}

// RecordSubscribeFailure counts a failed subscription.
func RecordSubscribeFailure(topic string) {
	globalManager.subscribeFailures.WithLabelValues(topic).Inc()
}

// RecordMessageReceived counts an inbound message.
func RecordMessageReceived(topic, kind string) {
	globalManager.messagesReceived.WithLabelValues(topic, kind).Inc()
}

// RecordMessageDropped counts a discarded inbound message.
func RecordMessageDropped(reason string) {
	globalManager.messagesDropped.WithLabelValues(reason).Inc()
}

// RecordPublish counts an outbound publish and observes its latency.
func RecordPublish(topic string, err error, latencyMs float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	globalManager.publishes.WithLabelValues(topic, result).Inc()
	globalManager.publishLatency.WithLabelValues(topic).Observe(latencyMs)
}

// RecordPublishRejected counts a publish refused before reaching the broker.
func RecordPublishRejected(topic string) {
	globalManager.publishes.WithLabelValues(topic, "rejected").Inc()
}

// UpdateRecentScores sets the recent window size.
func UpdateRecentScores(n int) {
	globalManager.recentScores.Set(float64(n))
}

// UpdateLatestScore sets the latest structured score.
func UpdateLatestScore(score float64) {
	globalManager.latestScore.Set(score)
}

// UpdateLegacyScore sets the latest legacy numeric score.
func UpdateLegacyScore(score float64) {
	globalManager.legacyScore.Set(score)
}

// Persistence pipeline metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted event.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts a rejected event.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordStoreOperation counts a store operation and observes its latency.
func RecordStoreOperation(driver, op string, err error, latencyMs float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	globalManager.storeOperations.WithLabelValues(driver, op, result).Inc()
	globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Process metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
