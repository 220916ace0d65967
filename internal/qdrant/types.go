// Package qdrant provides a wrapper around the Qdrant Go client with
// simplified APIs for the product vector index.
package qdrant

import (
	"time"
)

// CollectionConfig defines the configuration for creating a Qdrant collection.
type CollectionConfig struct {
	// Name is the collection name (will be prefixed with "fc_").
	Name string

	// DenseVectorSize is the dimension of dense vectors.
	DenseVectorSize uint64

	// OnDiskPayload stores payload on disk to save RAM.
	OnDiskPayload bool

	// IndexingThreshold is the number of vectors before HNSW index is built.
	IndexingThreshold uint64

	// MemmapThreshold is the number of vectors before memory-mapping is used.
	MemmapThreshold uint64
}

// DefaultCollectionConfig returns sensible defaults for a product collection.
func DefaultCollectionConfig(name string) CollectionConfig {
	return CollectionConfig{
		Name:              name,
		DenseVectorSize:   1536,
		OnDiskPayload:     true,
		IndexingThreshold: 20000,
		MemmapThreshold:   50000,
	}
}

// Point represents a product point to upsert into Qdrant.
type Point struct {
	// ID is the unique point identifier.
	ID string

	// DenseVector is the semantic embedding vector.
	DenseVector []float32

	// SparseIndices are the token IDs for the sparse vector.
	SparseIndices []uint32

	// SparseValues are the token weights for the sparse vector.
	SparseValues []float32

	// Payload is the product metadata attached to this point.
	Payload ProductPayload
}

// ProductPayload contains the filterable product attributes stored on a
// point. Attributes absent at indexing time keep their zero value, which
// matches the pipeline's defaulting rules (unknown rating is 0, unknown
// category is the empty string).
type ProductPayload struct {
	ProductID      string    `json:"product_id"`
	Title          string    `json:"title"`
	Price          float64   `json:"price"`
	Category       string    `json:"category"`
	Brand          string    `json:"brand"`
	Material       string    `json:"material"`
	Available      bool      `json:"available"`
	PaymentMethods []string  `json:"payment_methods"`
	Rating         float64   `json:"rating"`
	ReviewCount    int       `json:"review_count"`
	IndexedAt      time.Time `json:"indexed_at"`
}

// SearchRequest defines parameters for a vector search.
type SearchRequest struct {
	// DenseVector for dense vector search.
	DenseVector []float32

	// SparseIndices for sparse vector search.
	SparseIndices []uint32

	// SparseValues for sparse vector search.
	SparseValues []float32

	// Limit is the maximum number of results to return.
	Limit uint64

	// PrefetchLimit is the number of candidates retrieved per retriever
	// before fusion.
	PrefetchLimit uint64

	// Filter constrains the search to matching products.
	Filter *SearchFilter

	// WithPayload includes payload in results.
	WithPayload bool

	// ScoreThreshold filters results below this score.
	ScoreThreshold *float32
}

// SearchFilter defines index-side filter conditions. Most constraint
// filtering happens in the ranking pipeline; the index filter only
// narrows retrieval where that is cheap.
type SearchFilter struct {
	// AvailableOnly restricts retrieval to sellable products.
	AvailableOnly bool

	// Categories restricts retrieval to the given categories.
	Categories []string
}

// SearchResult represents a single search result.
type SearchResult struct {
	// ID is the point identifier.
	ID string

	// Score is the relevance score.
	Score float32

	// Payload contains the product metadata.
	Payload ProductPayload
}

// DeleteFilter defines conditions for deleting points.
type DeleteFilter struct {
	// IDs deletes specific point IDs.
	IDs []string

	// ProductID deletes the point carrying this product.
	ProductID string

	// Category deletes all points in a category.
	Category string
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	// Name is the collection name (without prefix).
	Name string

	// PointsCount is the total number of points.
	PointsCount uint64

	// Status is the collection health status.
	Status string

	// SegmentsCount is the number of segments.
	SegmentsCount uint64
}
