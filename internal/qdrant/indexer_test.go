package qdrant

import (
	"context"
	"testing"

	"github.com/fincommerce/recommender/internal/catalog"
	"github.com/fincommerce/recommender/internal/pkg/hash"
	"github.com/fincommerce/recommender/internal/pkg/logger"
)

type stubEncoder struct {
	dense  []float32
	sparse []uint32
	texts  []string
}

func (e *stubEncoder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	e.texts = append(e.texts, text)
	return e.dense, nil
}

func (e *stubEncoder) EncodeSparseDocument(string) ([]uint32, []float32) {
	values := make([]float32, len(e.sparse))
	for i := range values {
		values[i] = 1.0
	}
	return e.sparse, values
}

func TestIndexerPointFor(t *testing.T) {
	enc := &stubEncoder{dense: []float32{0.1, 0.2}, sparse: []uint32{3, 7}}
	ix := &Indexer{
		encoder:    enc,
		collection: "products",
		log:        logger.New("error", "text"),
	}

	p := &catalog.Product{
		ID:             "p1",
		Title:          "Leather Wallet",
		Description:    "Slim bifold wallet",
		Price:          39.99,
		Category:       "accessories",
		Brand:          "Acme",
		Material:       "leather",
		Available:      true,
		PaymentMethods: []string{"card", "paypal"},
		Rating:         catalog.Rating{Rate: 4.5, Count: 120},
	}

	point, err := ix.pointFor(context.Background(), p)
	if err != nil {
		t.Fatalf("pointFor: %v", err)
	}

	if point.ID != hash.PointID("p1") {
		t.Errorf("point ID = %q, want deterministic ID for p1", point.ID)
	}
	if len(point.DenseVector) != 2 || len(point.SparseIndices) != 2 {
		t.Errorf("vectors not carried over: dense=%d sparse=%d", len(point.DenseVector), len(point.SparseIndices))
	}

	pl := point.Payload
	if pl.ProductID != "p1" || pl.Title != "Leather Wallet" || pl.Price != 39.99 {
		t.Errorf("payload identity fields wrong: %+v", pl)
	}
	if pl.Category != "accessories" || pl.Brand != "Acme" || pl.Material != "leather" {
		t.Errorf("payload attribute fields wrong: %+v", pl)
	}
	if !pl.Available || pl.Rating != 4.5 || pl.ReviewCount != 120 {
		t.Errorf("payload signal fields wrong: %+v", pl)
	}
	if pl.IndexedAt.IsZero() {
		t.Error("IndexedAt not set")
	}

	if len(enc.texts) != 1 || enc.texts[0] != p.SearchText() {
		t.Errorf("embedded text = %v, want SearchText()", enc.texts)
	}
}

func TestIndexerSameProductSamePointID(t *testing.T) {
	if hash.PointID("p1") != hash.PointID("p1") {
		t.Error("point IDs for the same product must match")
	}
	if hash.PointID("p1") == hash.PointID("p2") {
		t.Error("point IDs for different products must differ")
	}
}
