package catalog

import (
	"context"
	"time"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/pkg/errors"
	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/recommend"
)

// Indexer pushes product records into the vector index. Optional: a nil
// indexer restricts the service to record storage.
type Indexer interface {
	// Index embeds and upserts the product into the vector index.
	Index(ctx context.Context, p *Product) error

	// Remove deletes the product from the vector index.
	Remove(ctx context.Context, id string) error
}

// Service provides product catalog operations and resolves IDs for the
// ranking pipeline.
type Service struct {
	storage Storage
	indexer Indexer
	events  bus.Bus
	log     *logger.Logger
}

// NewService creates a catalog service. indexer and events may be nil.
func NewService(storage Storage, indexer Indexer, events bus.Bus, log *logger.Logger) *Service {
	return &Service{
		storage: storage,
		indexer: indexer,
		events:  events,
		log:     log.WithComponent("catalog"),
	}
}

// Create validates, stores, and indexes a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	existing, err := s.storage.Load(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New(errors.CodeAlreadyExists, "product already exists").WithDetail("id", p.ID)
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.storage.Save(ctx, p); err != nil {
		return err
	}

	if s.indexer != nil {
		if err := s.indexer.Index(ctx, p); err != nil {
			// Record is stored; retrieval will miss it until reindexing.
			s.log.Warn("failed to index product", "id", p.ID, "error", err)
		}
	}

	s.publish(ctx, bus.TopicProductCreated, p)
	return nil
}

// Update validates and overwrites an existing product.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	existing, err := s.storage.Load(ctx, p.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.NotFoundError("product").WithDetail("id", p.ID)
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if err := s.storage.Save(ctx, p); err != nil {
		return err
	}

	if s.indexer != nil {
		if err := s.indexer.Index(ctx, p); err != nil {
			s.log.Warn("failed to reindex product", "id", p.ID, "error", err)
		}
	}

	s.publish(ctx, bus.TopicProductUpdated, p)
	return nil
}

// Get returns a product by ID.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.storage.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NotFoundError("product").WithDetail("id", id)
	}
	return p, nil
}

// List returns all products.
func (s *Service) List(ctx context.Context) ([]*Product, error) {
	return s.storage.LoadAll(ctx)
}

// Delete removes a product from storage and the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.storage.Load(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.NotFoundError("product").WithDetail("id", id)
	}

	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}

	if s.indexer != nil {
		if err := s.indexer.Remove(ctx, id); err != nil {
			s.log.Warn("failed to remove product from index", "id", id, "error", err)
		}
	}

	s.publish(ctx, bus.TopicProductDeleted, map[string]string{"id": id})
	return nil
}

// Count returns the number of stored products.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.storage.Count(ctx)
}

// Resolve implements recommend.Resolver: unknown IDs yield (nil, nil)
// so the assembler skips them.
func (s *Service) Resolve(ctx context.Context, id string) (*recommend.Record, error) {
	p, err := s.storage.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	return &recommend.Record{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Price:          p.Price,
		Category:       p.Category,
		Brand:          p.Brand,
		Material:       p.Material,
		Image:          p.Image,
		Rating:         p.Rating.Rate,
		ReviewCount:    p.Rating.Count,
		PaymentMethods: p.PaymentMethods,
	}, nil
}

func (s *Service) publish(ctx context.Context, topic string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, bus.NewEvent(topic, "catalog", payload)); err != nil {
		s.log.Warn("failed to publish catalog event", "topic", topic, "error", err)
	}
}

var _ recommend.Resolver = (*Service)(nil)
