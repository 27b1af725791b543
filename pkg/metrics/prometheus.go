// Package metrics provides Prometheus metrics for the race settlement service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	trophyDeltaBuckets = []float64{-40, -32, -24, -16, -8, -1, 0, 1, 8, 16, 24, 32, 40}
	coinBuckets        = []float64{0, 500, 1000, 1500, 2000, 3000, 5000, 8000, 12000, 20000}
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Settlement
	racesStarted       *prometheus.CounterVec
	racesSettled       prometheus.Counter
	trophyDelta        prometheus.Histogram
	coinsAwarded       prometheus.Histogram
	promotions         prometheus.Counter
	rewardsUnlocked    prometheus.Counter
	demotions          prometheus.Counter
	settlementErrors   *prometheus.CounterVec
	settlementLatency  *prometheus.HistogramVec
	rewardClaims       *prometheus.CounterVec
	notificationsSent  *prometheus.CounterVec
	notificationsDrops *prometheus.CounterVec
	websocketClients   prometheus.Gauge

	// Store
	storeLatency   *prometheus.HistogramVec
	storeConflicts *prometheus.CounterVec
	storeRecords   *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "raceledger",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.racesStarted = auto.NewCounterVec(m.counterOpts("races_started_total", "Races started, by whether the trophy floor capped the pre-deduction"), []string{"floor_hit"})
	m.racesSettled = auto.NewCounter(m.counterOpts("races_settled_total", "Races settled"))
	m.trophyDelta = auto.NewHistogram(m.histogramOpts("trophy_delta", "True trophy delta per settled race", trophyDeltaBuckets))
	m.coinsAwarded = auto.NewHistogram(m.histogramOpts("coins_awarded", "Coins paid per settled race", coinBuckets))
	m.promotions = auto.NewCounter(m.counterOpts("promotions_total", "Settlements that moved a player up at least one rank"))
	m.rewardsUnlocked = auto.NewCounter(m.counterOpts("promotion_rewards_unlocked_total", "Promotion rewards that became claimable"))
	m.demotions = auto.NewCounter(m.counterOpts("demotions_total", "Settlements that moved a player down a rank"))
	m.settlementErrors = auto.NewCounterVec(m.counterOpts("settlement_errors_total", "Rejected or failed settlement calls"), []string{"stage", "code"})
	m.settlementLatency = auto.NewHistogramVec(m.histogramOpts("settlement_latency_milliseconds", "Start and finish latency in milliseconds", nil), []string{"op"})
	m.rewardClaims = auto.NewCounterVec(m.counterOpts("reward_claims_total", "Promotion reward claims by outcome"), []string{"result"})
	m.notificationsSent = auto.NewCounterVec(m.counterOpts("notifications_delivered_total", "Notifications delivered to a sink"), []string{"sink"})
	m.notificationsDrops = auto.NewCounterVec(m.counterOpts("notifications_dropped_total", "Notifications dropped before delivery"), []string{"reason"})
	m.websocketClients = auto.NewGauge(m.gaugeOpts("websocket_clients", "Connected websocket clients"))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds", "Store transaction latency in milliseconds", nil), []string{"driver", "op"})
	m.storeConflicts = auto.NewCounterVec(m.counterOpts("store_conflicts_total", "Optimistic transactions replayed after a conflict"), []string{"driver"})
	m.storeRecords = auto.NewGaugeVec(m.gaugeOpts("store_records", "Records held by the in-memory store"), []string{"kind"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil), []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Notifications waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Notification queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization", "Queue fill ratio between 0 and 1"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Notifications enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Notifications dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Notifications rejected by a full or closed queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", nil))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured notification workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently delivering"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle_count", "Workers waiting for work"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Delivery latency per notification in milliseconds", nil))
	m.workerErrorRate = auto.NewCounter(m.counterOpts("worker_errors_total", "Deliveries that failed in at least one sink"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Settlement

// RecordRaceStarted counts a started race.
func RecordRaceStarted(floorHit bool) {
	globalManager.racesStarted.WithLabelValues(strconv.FormatBool(floorHit)).Inc()
}

// RecordRaceSettled counts a settled race and observes its delta and payout.
func RecordRaceSettled(trophyDelta, coins float64) {
	globalManager.racesSettled.Inc()
	globalManager.trophyDelta.Observe(trophyDelta)
	globalManager.coinsAwarded.Observe(coins)
}

// RecordPromotion counts a promotion and the rewards it unlocked.
func RecordPromotion(unlocked int) {
	globalManager.promotions.Inc()
	globalManager.rewardsUnlocked.Add(float64(unlocked))
}

// RecordDemotion counts a demotion.
func RecordDemotion() {
	globalManager.demotions.Inc()
}

// RecordSettlementError counts a failed start or finish by error code.
func RecordSettlementError(stage, code string) {
	globalManager.settlementErrors.WithLabelValues(stage, code).Inc()
}

// RecordSettlementLatency records start/finish latency in milliseconds.
func RecordSettlementLatency(op string, latencyMs float64) {
	globalManager.settlementLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordRewardClaim counts a claim attempt by outcome.
func RecordRewardClaim(result string) {
	globalManager.rewardClaims.WithLabelValues(result).Inc()
}

// RecordNotificationDelivered counts a delivery to sink.
func RecordNotificationDelivered(sink string) {
	globalManager.notificationsSent.WithLabelValues(sink).Inc()
}

// RecordNotificationDropped counts a notification lost for reason.
func RecordNotificationDropped(reason string) {
	globalManager.notificationsDrops.WithLabelValues(reason).Inc()
}

// UpdateWebsocketClients sets the connected client gauge.
func UpdateWebsocketClients(count int) {
	globalManager.websocketClients.Set(float64(count))
}

// Store

// RecordStoreLatency records a store transaction latency in milliseconds.
func RecordStoreLatency(driver, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// RecordStoreConflict counts an optimistic transaction replay.
func RecordStoreConflict(driver string) {
	globalManager.storeConflicts.WithLabelValues(driver).Inc()
}

// UpdateStoreRecords sets the record count gauge for kind.
func UpdateStoreRecords(kind string, count int) {
	globalManager.storeRecords.WithLabelValues(kind).Set(float64(count))
}

// HTTP

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue

// UpdateQueueSize updates the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization updates the queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency in milliseconds.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records delivery latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Errors

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System

// UpdateSystemMemoryUsage updates system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
