package qdrant

import (
	"context"

	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/recommend"
)

// QueryEncoder turns query text into the vector representations the
// index understands.
type QueryEncoder interface {
	// EmbedQuery returns the dense embedding for the query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EncodeSparse returns the sparse representation for the query
	// text. Empty slices mean sparse search is unavailable.
	EncodeSparse(text string) (indices []uint32, values []float32)
}

// Supplier retrieves candidates from the product index. It prefers
// hybrid (dense+sparse RRF) search, falls back to dense-only when no
// sparse encoding exists, and scans the index without ranking when
// similarity search comes back empty.
type Supplier struct {
	client     *Client
	encoder    QueryEncoder
	collection string
	log        *logger.Logger
}

// NewSupplier creates a candidate supplier over the given collection.
func NewSupplier(client *Client, encoder QueryEncoder, collection string, log *logger.Logger) *Supplier {
	return &Supplier{
		client:     client,
		encoder:    encoder,
		collection: collection,
		log:        log.WithComponent("supplier"),
	}
}

// Retrieve implements recommend.Supplier.
func (s *Supplier) Retrieve(ctx context.Context, qc recommend.QueryContext, breadth int) (recommend.Retrieval, error) {
	dense := qc.QueryVector
	if len(dense) == 0 {
		var err error
		dense, err = s.encoder.EmbedQuery(ctx, qc.Query)
		if err != nil {
			return recommend.Retrieval{}, err
		}
	}

	indices, values := s.encoder.EncodeSparse(qc.Query)

	req := SearchRequest{
		DenseVector:   dense,
		SparseIndices: indices,
		SparseValues:  values,
		Limit:         uint64(breadth),
		PrefetchLimit: uint64(breadth),
		WithPayload:   true,
	}

	var (
		results []SearchResult
		hybrid  bool
		err     error
	)
	if len(indices) > 0 {
		results, err = s.client.HybridSearch(ctx, s.collection, req)
		hybrid = true
	} else {
		results, err = s.client.DenseSearch(ctx, s.collection, req)
	}
	if err != nil {
		return recommend.Retrieval{}, err
	}

	if len(results) == 0 {
		// Broad fallback: scan sellable products without ranking.
		s.log.Debug("similarity search empty, scanning index", "query", qc.Query)
		results, err = s.client.ScrollProducts(ctx, s.collection, &SearchFilter{AvailableOnly: true}, breadth)
		if err != nil {
			return recommend.Retrieval{}, err
		}
		hybrid = false
	}

	candidates := make([]recommend.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, candidateFromResult(r))
	}

	return recommend.Retrieval{Candidates: candidates, Hybrid: hybrid}, nil
}

// candidateFromResult maps an index result onto a pipeline candidate,
// applying the defaulting rules for absent attributes.
func candidateFromResult(r SearchResult) recommend.Candidate {
	id := r.Payload.ProductID
	if id == "" {
		id = r.ID
	}

	return recommend.Candidate{
		ID:             id,
		RelevanceScore: float64(r.Score),
		Price:          r.Payload.Price,
		Category:       r.Payload.Category,
		Brand:          r.Payload.Brand,
		Material:       r.Payload.Material,
		Available:      r.Payload.Available,
		PaymentMethods: r.Payload.PaymentMethods,
		Rating:         r.Payload.Rating,
		ReviewCount:    r.Payload.ReviewCount,
	}
}
