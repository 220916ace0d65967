package metrics

import (
	"runtime"
	"sync"
	"time"
)

// Metrics holds all application metrics for the recommendation service.
type Metrics struct {
	// Recommendation metrics
	RecoRequests  *Counter
	RecoLatency   *Histogram
	RecoResults   *Histogram
	RecoDegraded  *Counter
	RecoErrors    *CounterVec   // labels: error_type
	StageDuration *HistogramVec // labels: stage

	// Catalog and index metrics
	IndexedProducts *Counter
	IndexLatency    *Histogram
	IndexErrors     *CounterVec // labels: error_type

	// Embedding metrics
	EmbedRequests  *Counter
	EmbedLatency   *Histogram
	EmbedBatchSize *Histogram

	// Cache metrics
	CacheHits   *CounterVec // labels: type
	CacheMisses *CounterVec // labels: type
	CacheSize   *GaugeVec   // labels: type

	// Feedback metrics
	Impressions      *Counter
	Clicks           *Counter
	AddToCarts       *Counter
	ConstraintMisses *CounterVec // labels: constraint

	// Bus metrics
	BusEventsPublished *CounterVec // labels: topic
	BusErrors          *CounterVec // labels: topic

	// HTTP metrics
	HTTPRequests         *CounterVec   // labels: method, path, status
	HTTPDuration         *HistogramVec // labels: method, path
	HTTPRequestsInFlight *Gauge

	// System metrics
	GoroutineCount *Gauge
	MemoryUsage    *Gauge
	Uptime         *Counter

	// Time-series data for dashboards
	TimeSeries *TimeSeriesData

	redisStorage *RedisStorage

	startTime time.Time
	mu        sync.RWMutex
}

// New creates a metrics instance with in-memory storage only.
func New() *Metrics {
	return NewWithConfig("memory", "")
}

// NewWithConfig creates a metrics instance with the given persistence
// backend ("memory" or "redis"). Redis failures fall back to in-memory.
func NewWithConfig(persistence, redisURL string) *Metrics {
	var redisStorage *RedisStorage
	var timeSeries *TimeSeriesData

	if persistence == "redis" && redisURL != "" {
		storage, err := NewRedisStorage(redisURL)
		if err == nil {
			redisStorage = storage
			timeSeries = NewTimeSeriesDataWithRedis(redisStorage)
		}
	}
	if timeSeries == nil {
		timeSeries = NewTimeSeriesData()
	}

	m := &Metrics{
		RecoRequests: NewCounter(
			"fc_reco_requests_total",
			"Total number of recommendation requests",
			nil,
		),
		RecoLatency: NewHistogram(
			"fc_reco_latency_ms",
			"Recommendation request latency in milliseconds",
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		),
		RecoResults: NewHistogram(
			"fc_reco_results",
			"Number of results per recommendation response",
			[]float64{1, 3, 5, 10, 15, 25, 50, 100},
		),
		RecoDegraded: NewCounter(
			"fc_reco_degraded_total",
			"Total number of degraded recommendation responses",
			nil,
		),
		RecoErrors: NewCounterVec(
			"fc_reco_errors_total",
			"Total number of recommendation errors",
			[]string{"error_type"},
		),
		StageDuration: NewHistogramVec(
			"fc_reco_stage_duration_ms",
			"Pipeline stage duration in milliseconds",
			[]string{"stage"},
			[]float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		),

		IndexedProducts: NewCounter(
			"fc_indexed_products_total",
			"Total number of products indexed",
			nil,
		),
		IndexLatency: NewHistogram(
			"fc_index_latency_ms",
			"Indexing latency in milliseconds per product",
			[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		),
		IndexErrors: NewCounterVec(
			"fc_index_errors_total",
			"Total number of indexing errors",
			[]string{"error_type"},
		),

		EmbedRequests: NewCounter(
			"fc_embed_requests_total",
			"Total number of embedding requests",
			nil,
		),
		EmbedLatency: NewHistogram(
			"fc_embed_latency_ms",
			"Embedding generation latency in milliseconds",
			[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		),
		EmbedBatchSize: NewHistogram(
			"fc_embed_batch_size",
			"Number of texts per embedding batch",
			[]float64{1, 5, 10, 20, 32, 50, 64, 100},
		),

		CacheHits: NewCounterVec(
			"fc_cache_hits_total",
			"Total number of cache hits",
			[]string{"type"},
		),
		CacheMisses: NewCounterVec(
			"fc_cache_misses_total",
			"Total number of cache misses",
			[]string{"type"},
		),
		CacheSize: NewGaugeVec(
			"fc_cache_size",
			"Current cache size",
			[]string{"type"},
		),

		Impressions: NewCounter(
			"fc_impressions_total",
			"Total number of recommendation impressions",
			nil,
		),
		Clicks: NewCounter(
			"fc_clicks_total",
			"Total number of clicks on recommended products",
			nil,
		),
		AddToCarts: NewCounter(
			"fc_add_to_carts_total",
			"Total number of add-to-cart events on recommended products",
			nil,
		),
		ConstraintMisses: NewCounterVec(
			"fc_constraint_misses_total",
			"Served results violating a requested constraint",
			[]string{"constraint"},
		),

		BusEventsPublished: NewCounterVec(
			"fc_bus_events_published_total",
			"Total number of events published to the bus",
			[]string{"topic"},
		),
		BusErrors: NewCounterVec(
			"fc_bus_errors_total",
			"Total number of event bus errors",
			[]string{"topic"},
		),

		HTTPRequests: NewCounterVec(
			"fc_http_requests_total",
			"Total number of HTTP requests",
			[]string{"method", "path", "status"},
		),
		HTTPDuration: NewHistogramVec(
			"fc_http_request_duration_seconds",
			"HTTP request duration in seconds",
			[]string{"method", "path"},
			[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		),
		HTTPRequestsInFlight: NewGauge(
			"fc_http_requests_in_flight",
			"Number of HTTP requests currently being processed",
			nil,
		),

		GoroutineCount: NewGauge(
			"fc_goroutines",
			"Number of goroutines",
			nil,
		),
		MemoryUsage: NewGauge(
			"fc_memory_bytes",
			"Memory usage in bytes",
			nil,
		),
		Uptime: NewCounter(
			"fc_uptime_seconds",
			"Application uptime in seconds",
			nil,
		),

		TimeSeries:   timeSeries,
		redisStorage: redisStorage,
		startTime:    time.Now(),
	}

	go m.collectSystemMetrics()

	return m
}

// collectSystemMetrics periodically samples runtime statistics.
func (m *Metrics) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		m.MemoryUsage.Set(float64(memStats.Alloc))

		m.Uptime.Add(15)
	}
}

// RecordRecommendation records one recommendation request.
func (m *Metrics) RecordRecommendation(latencyMs int64, resultCount int, degraded bool, err error) {
	m.RecoRequests.Inc()
	m.RecoLatency.Observe(float64(latencyMs))
	m.RecoResults.Observe(float64(resultCount))
	if degraded {
		m.RecoDegraded.Inc()
	}
	if m.TimeSeries != nil {
		m.TimeSeries.RecordRecommendation(float64(latencyMs))
	}
	if err != nil {
		m.RecoErrors.WithLabels(errorType(err)).Inc()
	}
}

// RecordStage records the duration of one pipeline stage. Wired as the
// pipeline's stage observer.
func (m *Metrics) RecordStage(stage string, elapsed time.Duration) {
	m.StageDuration.WithLabels(stage).Observe(float64(elapsed.Milliseconds()))
}

// RecordIndex records product indexing metrics.
func (m *Metrics) RecordIndex(productCount int, latencyMs int64, err error) {
	m.IndexedProducts.Add(int64(productCount))
	m.IndexLatency.Observe(float64(latencyMs))
	if m.TimeSeries != nil {
		m.TimeSeries.RecordIndex(productCount)
	}
	if err != nil {
		m.IndexErrors.WithLabels(errorType(err)).Inc()
	}
}

// RecordEmbed records embedding generation metrics.
func (m *Metrics) RecordEmbed(batchSize int, latencyMs int64) {
	m.EmbedRequests.Inc()
	m.EmbedLatency.Observe(float64(latencyMs))
	m.EmbedBatchSize.Observe(float64(batchSize))
}

// RecordCacheHit records a cache hit. Implements embed.CacheMetrics.
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabels(cacheType).Inc()
}

// RecordCacheMiss records a cache miss. Implements embed.CacheMetrics.
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabels(cacheType).Inc()
}

// UpdateCacheSize updates the cache size gauge. Implements
// embed.CacheMetrics.
func (m *Metrics) UpdateCacheSize(cacheType string, size int) {
	m.CacheSize.WithLabels(cacheType).Set(float64(size))
}

// RecordImpression records a served recommendation impression.
func (m *Metrics) RecordImpression() {
	m.Impressions.Inc()
}

// RecordClick records a click on a recommended product.
func (m *Metrics) RecordClick() {
	m.Clicks.Inc()
}

// RecordAddToCart records an add-to-cart on a recommended product.
func (m *Metrics) RecordAddToCart() {
	m.AddToCarts.Inc()
}

// RecordConstraintMiss records a served result that violated a
// requested constraint (budget, category, brand, material, payment).
func (m *Metrics) RecordConstraintMiss(constraint string) {
	m.ConstraintMisses.WithLabels(constraint).Inc()
}

// RecordBusPublish records an event bus publish.
func (m *Metrics) RecordBusPublish(topic string, err error) {
	m.BusEventsPublished.WithLabels(topic).Inc()
	if err != nil {
		m.BusErrors.WithLabels(topic).Inc()
	}
}

// RecordHTTP records HTTP request metrics. Called by the HTTP
// middleware.
func (m *Metrics) RecordHTTP(method, path string, status int, durationSeconds float64) {
	normalizedPath := normalizePath(path)
	m.HTTPRequests.WithLabels(method, normalizedPath, statusCode(status)).Inc()
	m.HTTPDuration.WithLabels(method, normalizedPath).Observe(durationSeconds)
}

// errorType extracts a low-cardinality error label.
func errorType(err error) string {
	if err == nil {
		return "unknown"
	}
	return "generic"
}

// Reset resets all scalar metrics to zero. Used in tests.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecoRequests.Reset()
	m.RecoDegraded.Reset()
	m.IndexedProducts.Reset()
	m.EmbedRequests.Reset()
	m.Impressions.Reset()
	m.Clicks.Reset()
	m.AddToCarts.Reset()
	m.Uptime.Reset()

	m.HTTPRequestsInFlight.Set(0)
	m.GoroutineCount.Set(0)
	m.MemoryUsage.Set(0)

	m.startTime = time.Now()
}

// Close releases the Redis connection if persistence is enabled.
func (m *Metrics) Close() error {
	if m.redisStorage != nil {
		return m.redisStorage.Close()
	}
	return nil
}

// IsRedisPersisted reports whether metrics history is persisted to Redis.
func (m *Metrics) IsRedisPersisted() bool {
	return m.redisStorage != nil
}
