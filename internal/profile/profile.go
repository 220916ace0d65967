// Package profile stores per-user personalization defaults and merges
// them into the per-request query context.
package profile

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fincommerce/recommender/internal/pkg/errors"
	"github.com/fincommerce/recommender/internal/recommend"
)

// Profile holds a user's stored preferences. All fields are optional;
// zero values mean no stored preference.
type Profile struct {
	UserID                 string    `json:"user_id"`
	BudgetMin              float64   `json:"budget_min"`
	BudgetMax              float64   `json:"budget_max"`
	PreferredCategories    []string  `json:"preferred_categories,omitempty"`
	PreferredBrands        []string  `json:"preferred_brands,omitempty"`
	PreferredMaterials     []string  `json:"preferred_materials,omitempty"`
	PreferredPaymentMethod string    `json:"preferred_payment_method,omitempty"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Validate checks the profile for storage.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return errors.ValidationError("user id is required")
	}
	if p.BudgetMin < 0 || p.BudgetMax < 0 {
		return errors.ValidationError("budget bounds must be non-negative")
	}
	if p.BudgetMax > 0 && p.BudgetMin > p.BudgetMax {
		return errors.ValidationError("budget min must not exceed max")
	}
	return nil
}

// HasBudget reports whether the profile carries a budget constraint.
func (p *Profile) HasBudget() bool {
	return p.BudgetMax > 0
}

// ApplyTo fills gaps in the query context from the stored profile.
// Request-supplied fields always win; the profile only contributes
// where the request is silent.
func (p *Profile) ApplyTo(qc recommend.QueryContext) recommend.QueryContext {
	if qc.Budget == nil && p.HasBudget() {
		qc.Budget = &recommend.Budget{Min: p.BudgetMin, Max: p.BudgetMax}
	}
	if len(qc.Preferences.Categories) == 0 {
		qc.Preferences.Categories = p.PreferredCategories
	}
	if len(qc.Preferences.Brands) == 0 {
		qc.Preferences.Brands = p.PreferredBrands
	}
	if len(qc.Preferences.Materials) == 0 {
		qc.Preferences.Materials = p.PreferredMaterials
	}
	if qc.PreferredPaymentMethod == "" {
		qc.PreferredPaymentMethod = p.PreferredPaymentMethod
	}
	return qc
}

// Storage is the interface for profile persistence.
type Storage interface {
	// Save saves a profile.
	Save(ctx context.Context, p *Profile) error

	// Load loads a profile by user ID. Returns (nil, nil) when the user
	// has no stored profile.
	Load(ctx context.Context, userID string) (*Profile, error)

	// Delete deletes a profile.
	Delete(ctx context.Context, userID string) error
}

// MemoryStorage stores profiles in memory.
type MemoryStorage struct {
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewMemoryStorage creates a new in-memory profile storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		profiles: make(map[string]*Profile),
	}
}

func (m *MemoryStorage) Save(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *MemoryStorage) Load(ctx context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}

	cp := *p
	return &cp, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.profiles, userID)
	return nil
}

const redisKeyPrefix = "fincommerce:profile:"

// RedisStorage stores profiles in Redis as JSON values.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage creates a Redis-backed profile storage.
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

func profileKey(userID string) string {
	return redisKeyPrefix + userID
}

func (r *RedisStorage) Save(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "marshaling profile", err)
	}

	if err := r.client.Set(ctx, profileKey(p.UserID), data, 0).Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "saving profile", err)
	}

	return nil
}

func (r *RedisStorage) Load(ctx context.Context, userID string) (*Profile, error) {
	data, err := r.client.Get(ctx, profileKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "loading profile", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "unmarshaling profile", err)
	}

	return &p, nil
}

func (r *RedisStorage) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, profileKey(userID)).Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, "deleting profile", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

var _ Storage = (*MemoryStorage)(nil)
var _ Storage = (*RedisStorage)(nil)

// Service provides profile operations.
type Service struct {
	storage Storage
}

// NewService creates a profile service.
func NewService(storage Storage) *Service {
	return &Service{storage: storage}
}

// Save validates and stores a profile.
func (s *Service) Save(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	return s.storage.Save(ctx, p)
}

// Get returns the stored profile for a user.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.storage.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NotFoundError("profile").WithDetail("user_id", userID)
	}
	return p, nil
}

// Delete removes a stored profile.
func (s *Service) Delete(ctx context.Context, userID string) error {
	return s.storage.Delete(ctx, userID)
}

// Enrich merges the stored profile for userID into the query context.
// Unknown users and storage failures leave the context unchanged:
// personalization is best-effort.
func (s *Service) Enrich(ctx context.Context, userID string, qc recommend.QueryContext) recommend.QueryContext {
	if userID == "" {
		return qc
	}

	p, err := s.storage.Load(ctx, userID)
	if err != nil || p == nil {
		return qc
	}

	return p.ApplyTo(qc)
}
