package metrics

import (
	"context"
	"sync"
	"time"
)

// DataPoint is a single time-series sample.
type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// MetricHistory stores time-series data with fixed-size buckets and
// bounded retention.
type MetricHistory struct {
	mu          sync.Mutex
	buckets     []DataPoint
	bucketSize  time.Duration
	maxBuckets  int
	accumulator float64
	count       int64
	lastBucket  time.Time
	storage     *RedisStorage // optional
	metricName  string
}

// NewMetricHistory creates a history with the given bucket duration and
// retention.
func NewMetricHistory(bucketSize time.Duration, maxBuckets int) *MetricHistory {
	return &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
	}
}

// NewMetricHistoryWithRedis creates a history that persists finalized
// buckets to Redis and restores recent history on startup.
func NewMetricHistoryWithRedis(bucketSize time.Duration, maxBuckets int, storage *RedisStorage, metricName string) *MetricHistory {
	h := &MetricHistory{
		buckets:    make([]DataPoint, 0, maxBuckets),
		bucketSize: bucketSize,
		maxBuckets: maxBuckets,
		lastBucket: time.Now().Truncate(bucketSize),
		storage:    storage,
		metricName: metricName,
	}

	if storage != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		since := time.Now().Add(-time.Duration(maxBuckets) * bucketSize)
		if dataPoints, err := storage.LoadHistory(ctx, metricName, since); err == nil && len(dataPoints) > 0 {
			h.buckets = dataPoints
		}
	}

	return h
}

// Record adds a value to the current bucket; the bucket value is the
// average of its observations.
func (h *MetricHistory) Record(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rotate()
	h.accumulator += value
	h.count++
}

// RecordCount increments the current bucket by one (for rate series).
func (h *MetricHistory) RecordCount() {
	h.Record(1)
}

// RecordSum adds to the current bucket's running sum (for count series).
func (h *MetricHistory) RecordSum(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rotate()
	h.accumulator += value
	h.count = -1 // sum bucket marker
}

// rotate finalizes the previous bucket when the clock has moved into a
// new one. Must be called with the lock held.
func (h *MetricHistory) rotate() {
	currentBucket := time.Now().Truncate(h.bucketSize)
	if !currentBucket.After(h.lastBucket) {
		return
	}

	if h.count != 0 || h.accumulator != 0 {
		value := h.accumulator
		if h.count > 0 {
			value = h.accumulator / float64(h.count)
		}
		dp := DataPoint{Timestamp: h.lastBucket, Value: value}
		h.buckets = append(h.buckets, dp)

		// Persist without blocking the recording path.
		if h.storage != nil && h.metricName != "" {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = h.storage.SaveDataPoint(ctx, h.metricName, dp)
			}()
		}

		if len(h.buckets) > h.maxBuckets {
			h.buckets = h.buckets[len(h.buckets)-h.maxBuckets:]
		}
	}

	h.accumulator = 0
	h.count = 0
	h.lastBucket = currentBucket
}

// History returns finalized buckets plus the current bucket if it has
// data.
func (h *MetricHistory) History() []DataPoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.rotate()

	result := make([]DataPoint, len(h.buckets))
	copy(result, h.buckets)

	if h.count > 0 {
		result = append(result, DataPoint{
			Timestamp: h.lastBucket,
			Value:     h.accumulator / float64(h.count),
		})
	} else if h.count < 0 || h.accumulator != 0 {
		result = append(result, DataPoint{
			Timestamp: h.lastBucket,
			Value:     h.accumulator,
		})
	}

	return result
}

// HistorySince returns data points at or after the given time.
func (h *MetricHistory) HistorySince(since time.Time) []DataPoint {
	all := h.History()
	result := make([]DataPoint, 0, len(all))
	for _, dp := range all {
		if !dp.Timestamp.Before(since) {
			result = append(result, dp)
		}
	}
	return result
}

// TimeSeriesData holds the dashboard time-series.
type TimeSeriesData struct {
	RecoRate    *MetricHistory // requests per bucket
	RecoLatency *MetricHistory // average latency per bucket
	IndexRate   *MetricHistory // products indexed per bucket
}

// NewTimeSeriesData creates in-memory time-series with 5-minute buckets
// and one hour of retention.
func NewTimeSeriesData() *TimeSeriesData {
	bucketSize := 5 * time.Minute
	maxBuckets := 12

	return &TimeSeriesData{
		RecoRate:    NewMetricHistory(bucketSize, maxBuckets),
		RecoLatency: NewMetricHistory(bucketSize, maxBuckets),
		IndexRate:   NewMetricHistory(bucketSize, maxBuckets),
	}
}

// NewTimeSeriesDataWithRedis creates Redis-persisted time-series.
func NewTimeSeriesDataWithRedis(storage *RedisStorage) *TimeSeriesData {
	bucketSize := 5 * time.Minute
	maxBuckets := 12

	return &TimeSeriesData{
		RecoRate:    NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, "reco_rate"),
		RecoLatency: NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, "reco_latency"),
		IndexRate:   NewMetricHistoryWithRedis(bucketSize, maxBuckets, storage, "index_rate"),
	}
}

// RecordRecommendation records one served recommendation for the
// time-series.
func (t *TimeSeriesData) RecordRecommendation(latencyMs float64) {
	t.RecoRate.RecordCount()
	t.RecoLatency.Record(latencyMs)
}

// RecordIndex records an indexing event.
func (t *TimeSeriesData) RecordIndex(productCount int) {
	t.IndexRate.RecordSum(float64(productCount))
}
