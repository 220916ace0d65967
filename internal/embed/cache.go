package embed

import (
	"sync"

	"github.com/fincommerce/recommender/internal/pkg/hash"
)

// CacheMetrics is the interface for recording cache metrics. Allows the
// cache to stay decoupled from the metrics package.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	UpdateCacheSize(cacheType string, size int)
}

// Cache caches embeddings by model and text hash with LRU eviction.
type Cache struct {
	mu      sync.RWMutex
	cache   map[string][]float32
	maxSize int
	order   []string // LRU order
	model   string
	metrics CacheMetrics
}

// NewCache creates a new embedding cache for the given model.
func NewCache(model string, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 10000
	}

	return &Cache{
		cache:   make(map[string][]float32),
		maxSize: maxSize,
		order:   make([]string, 0, maxSize),
		model:   model,
	}
}

// SetMetrics sets the metrics recorder for this cache.
func (c *Cache) SetMetrics(metrics CacheMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// Get retrieves an embedding from cache.
func (c *Cache) Get(text string) ([]float32, bool) {
	key := hash.EmbedKey(c.model, text)

	c.mu.RLock()
	emb, ok := c.cache[key]
	c.mu.RUnlock()

	if ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit("embed")
		}

		// Move to end of LRU (most recently used)
		c.mu.Lock()
		c.moveToEnd(key)
		c.mu.Unlock()

		// Return a copy to prevent external mutation
		embCopy := make([]float32, len(emb))
		copy(embCopy, emb)
		return embCopy, true
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss("embed")
	}

	return nil, false
}

// Set stores an embedding in cache.
func (c *Cache) Set(text string, embedding []float32) {
	key := hash.EmbedKey(c.model, text)

	embCopy := make([]float32, len(embedding))
	copy(embCopy, embedding)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; exists {
		c.cache[key] = embCopy
		c.moveToEnd(key)
		return
	}

	// Evict if at capacity
	for len(c.cache) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}

	c.cache[key] = embCopy
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize("embed", len(c.cache))
	}
}

// moveToEnd moves a key to the end of the LRU order (must hold lock).
func (c *Cache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string][]float32)
	c.order = c.order[:0]
}
