package embed

import (
	"context"
	"time"

	"github.com/fincommerce/recommender/internal/pkg/errors"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

// EmbedMetrics receives embedding telemetry.
type EmbedMetrics interface {
	RecordEmbed(batchSize int, latencyMs int64)
}

// Service bundles the dense embedder, its cache, and the sparse encoder
// behind the encoder interfaces the index consumes.
type Service struct {
	embedder Embedder
	cache    *Cache
	sparse   *SparseEncoder
	metrics  EmbedMetrics
	log      *logger.Logger
}

// NewService creates an embedding service. cache may be nil to disable
// caching.
func NewService(embedder Embedder, cache *Cache, sparse *SparseEncoder, log *logger.Logger) *Service {
	return &Service{
		embedder: embedder,
		cache:    cache,
		sparse:   sparse,
		log:      log.WithComponent("embed"),
	}
}

// SetMetrics attaches embedding telemetry.
func (s *Service) SetMetrics(m EmbedMetrics) {
	s.metrics = m
}

// embed calls the embedder and records telemetry.
func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	embs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordEmbed(len(texts), time.Since(start).Milliseconds())
	}
	return embs, nil
}

// EmbedQuery returns the dense embedding for query text, consulting the
// cache first.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.ValidationError("query text is empty")
	}

	if s.cache != nil {
		if emb, ok := s.cache.Get(text); ok {
			return emb, nil
		}
	}

	embs, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embs) != 1 {
		return nil, errors.EmbedError("embedding service returned no vector", nil)
	}

	if s.cache != nil {
		s.cache.Set(text, embs[0])
	}

	return embs[0], nil
}

// EmbedDocument returns the dense embedding for document text. Document
// embeddings are not cached; indexing touches each document once.
func (s *Service) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	embs, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embs) != 1 {
		return nil, errors.EmbedError("embedding service returned no vector", nil)
	}
	return embs[0], nil
}

// EmbedBatch embeds many documents, preserving order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embed(ctx, texts)
}

// EncodeSparse returns the sparse query representation. Empty slices
// mean sparse search is unavailable (no fitted vocabulary).
func (s *Service) EncodeSparse(text string) ([]uint32, []float32) {
	vec := s.sparse.EncodeQuery(text)
	return vec.Indices, vec.Values
}

// EncodeSparseDocument returns the sparse document representation.
func (s *Service) EncodeSparseDocument(text string) ([]uint32, []float32) {
	vec := s.sparse.EncodeDocument(text)
	return vec.Indices, vec.Values
}

// Sparse exposes the underlying sparse encoder for fitting and
// vocabulary persistence.
func (s *Service) Sparse() *SparseEncoder {
	return s.sparse
}
