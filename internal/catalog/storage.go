package catalog

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fincommerce/recommender/internal/pkg/errors"
)

// Storage is the interface for product persistence.
type Storage interface {
	// Save saves a product record.
	Save(ctx context.Context, p *Product) error

	// Load loads a product by ID. Returns (nil, nil) when the ID is
	// unknown.
	Load(ctx context.Context, id string) (*Product, error)

	// LoadAll loads all products.
	LoadAll(ctx context.Context) ([]*Product, error)

	// Delete deletes a product.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored products.
	Count(ctx context.Context) (int, error)
}

// MemoryStorage stores products in memory (for testing and local runs).
type MemoryStorage struct {
	products map[string]*Product
	mu       sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		products: make(map[string]*Product),
	}
}

func (m *MemoryStorage) Save(ctx context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid external mutation
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *MemoryStorage) Load(ctx context.Context, id string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}

	cp := *p
	return &cp, nil
}

func (m *MemoryStorage) LoadAll(ctx context.Context) ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Product, 0, len(m.products))
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.products, id)
	return nil
}

func (m *MemoryStorage) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.products), nil
}

const (
	redisKeyPrefix = "fincommerce:product:"
	redisIndexKey  = "fincommerce:products"
)

// RedisStorage stores product records in Redis as JSON values, with a
// set holding the known IDs.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage creates a Redis-backed storage from a redis URL.
func NewRedisStorage(url string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "parsing redis URL", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to redis", err)
	}

	return &RedisStorage{client: client}, nil
}

func productKey(id string) string {
	return redisKeyPrefix + id
}

func (r *RedisStorage) Save(ctx context.Context, p *Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "marshaling product", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, productKey(p.ID), data, 0)
	pipe.SAdd(ctx, redisIndexKey, p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.CodeCatalogError, "saving product", err)
	}

	return nil
}

func (r *RedisStorage) Load(ctx context.Context, id string) (*Product, error) {
	data, err := r.client.Get(ctx, productKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeCatalogError, "loading product", err)
	}

	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "unmarshaling product", err)
	}

	return &p, nil
}

func (r *RedisStorage) LoadAll(ctx context.Context) ([]*Product, error) {
	ids, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, errors.Wrap(errors.CodeCatalogError, "listing product ids", err)
	}

	products := make([]*Product, 0, len(ids))
	for _, id := range ids {
		p, err := r.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue // index drifted, skip
		}
		products = append(products, p)
	}

	return products, nil
}

func (r *RedisStorage) Delete(ctx context.Context, id string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, productKey(id))
	pipe.SRem(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(errors.CodeCatalogError, "deleting product", err)
	}
	return nil
}

func (r *RedisStorage) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, redisIndexKey).Result()
	if err != nil {
		return 0, errors.Wrap(errors.CodeCatalogError, "counting products", err)
	}
	return int(n), nil
}

// Close closes the underlying Redis connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

var _ Storage = (*MemoryStorage)(nil)
var _ Storage = (*RedisStorage)(nil)
