package qdrant

import (
	"context"
	"time"

	"github.com/fincommerce/recommender/internal/catalog"
	"github.com/fincommerce/recommender/internal/pkg/hash"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

// DocumentEncoder produces the dense and sparse representations of a
// product document at indexing time. embed.Service implements it.
type DocumentEncoder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EncodeSparseDocument(text string) (indices []uint32, values []float32)
}

// IndexMetrics receives indexing telemetry.
type IndexMetrics interface {
	RecordIndex(productCount int, latencyMs int64, err error)
}

// Indexer writes catalog products into the vector collection so the
// supplier can retrieve them. It implements catalog.Indexer.
type Indexer struct {
	client     *Client
	encoder    DocumentEncoder
	collection string
	metrics    IndexMetrics
	log        *logger.Logger
}

var _ catalog.Indexer = (*Indexer)(nil)

// NewIndexer creates an indexer writing to the given collection.
func NewIndexer(client *Client, encoder DocumentEncoder, collection string, log *logger.Logger) *Indexer {
	return &Indexer{
		client:     client,
		encoder:    encoder,
		collection: collection,
		log:        log.WithComponent("indexer"),
	}
}

// SetMetrics attaches indexing telemetry.
func (ix *Indexer) SetMetrics(m IndexMetrics) {
	ix.metrics = m
}

// Index embeds the product and upserts it as a single point. The point
// ID is derived deterministically from the product ID, so reindexing
// the same product overwrites the previous point.
func (ix *Indexer) Index(ctx context.Context, p *catalog.Product) error {
	start := time.Now()
	err := ix.index(ctx, p)
	if ix.metrics != nil {
		ix.metrics.RecordIndex(1, time.Since(start).Milliseconds(), err)
	}
	return err
}

func (ix *Indexer) index(ctx context.Context, p *catalog.Product) error {
	point, err := ix.pointFor(ctx, p)
	if err != nil {
		return err
	}
	if err := ix.client.UpsertPoints(ctx, ix.collection, []Point{point}); err != nil {
		return err
	}
	ix.log.Debug("indexed product", "id", p.ID)
	return nil
}

// IndexBatch embeds and upserts many products at once. Used by the
// seed command; missing embeddings fail the whole batch.
func (ix *Indexer) IndexBatch(ctx context.Context, products []*catalog.Product, batchSize int) error {
	start := time.Now()
	err := ix.indexBatch(ctx, products, batchSize)
	if ix.metrics != nil {
		ix.metrics.RecordIndex(len(products), time.Since(start).Milliseconds(), err)
	}
	return err
}

func (ix *Indexer) indexBatch(ctx context.Context, products []*catalog.Product, batchSize int) error {
	points := make([]Point, 0, len(products))
	for _, p := range products {
		point, err := ix.pointFor(ctx, p)
		if err != nil {
			return err
		}
		points = append(points, point)
	}
	return ix.client.UpsertPointsBatch(ctx, ix.collection, points, batchSize)
}

// Remove deletes the product's point from the collection.
func (ix *Indexer) Remove(ctx context.Context, id string) error {
	if err := ix.client.DeletePoints(ctx, ix.collection, DeleteFilter{ProductID: id}); err != nil {
		return err
	}
	ix.log.Debug("removed product from index", "id", id)
	return nil
}

func (ix *Indexer) pointFor(ctx context.Context, p *catalog.Product) (Point, error) {
	text := p.SearchText()
	dense, err := ix.encoder.EmbedDocument(ctx, text)
	if err != nil {
		return Point{}, err
	}
	indices, values := ix.encoder.EncodeSparseDocument(text)
	return Point{
		ID:            hash.PointID(p.ID),
		DenseVector:   dense,
		SparseIndices: indices,
		SparseValues:  values,
		Payload: ProductPayload{
			ProductID:      p.ID,
			Title:          p.Title,
			Price:          p.Price,
			Category:       p.Category,
			Brand:          p.Brand,
			Material:       p.Material,
			Available:      p.Available,
			PaymentMethods: p.PaymentMethods,
			Rating:         p.Rating.Rate,
			ReviewCount:    p.Rating.Count,
			IndexedAt:      time.Now().UTC(),
		},
	}, nil
}
