package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// HybridSearch performs a hybrid search using both sparse and dense
// vectors with RRF fusion.
func (c *Client) HybridSearch(ctx context.Context, collection string, req SearchRequest) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	prefetch := make([]*qdrant.PrefetchQuery, 0, 2)

	prefetchLimit := req.PrefetchLimit
	if prefetchLimit == 0 {
		prefetchLimit = 100
	}

	// Sparse prefetch
	if len(req.SparseIndices) > 0 && len(req.SparseValues) > 0 {
		sparsePrefetch := &qdrant.PrefetchQuery{
			Query: qdrant.NewQuerySparse(req.SparseIndices, req.SparseValues),
			Using: qdrant.PtrOf("sparse"),
			Limit: qdrant.PtrOf(prefetchLimit),
		}
		if req.Filter != nil {
			sparsePrefetch.Filter = buildSearchFilter(req.Filter)
		}
		prefetch = append(prefetch, sparsePrefetch)
	}

	// Dense prefetch
	if len(req.DenseVector) > 0 {
		densePrefetch := &qdrant.PrefetchQuery{
			Query: qdrant.NewQueryDense(req.DenseVector),
			Using: qdrant.PtrOf("dense"),
			Limit: qdrant.PtrOf(prefetchLimit),
		}
		if req.Filter != nil {
			densePrefetch.Filter = buildSearchFilter(req.Filter)
		}
		prefetch = append(prefetch, densePrefetch)
	}

	if len(prefetch) == 0 {
		return nil, fmt.Errorf("at least one of sparse or dense vector must be provided")
	}

	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
	}

	if req.ScoreThreshold != nil {
		queryPoints.ScoreThreshold = req.ScoreThreshold
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}

	return scoredPointsToResults(results), nil
}

// DenseSearch performs a dense-only vector search.
func (c *Client) DenseSearch(ctx context.Context, collection string, req SearchRequest) ([]SearchResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	if len(req.DenseVector) == 0 {
		return nil, fmt.Errorf("dense vector is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	limit := req.Limit
	if limit == 0 {
		limit = 20
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: collectionName(collection),
		Query:          qdrant.NewQueryDense(req.DenseVector),
		Using:          qdrant.PtrOf("dense"),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(req.WithPayload),
	}

	if req.Filter != nil {
		queryPoints.Filter = buildSearchFilter(req.Filter)
	}

	if req.ScoreThreshold != nil {
		queryPoints.ScoreThreshold = req.ScoreThreshold
	}

	results, err := c.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}

	return scoredPointsToResults(results), nil
}

// buildSearchFilter builds a Qdrant filter from SearchFilter.
func buildSearchFilter(f *SearchFilter) *qdrant.Filter {
	if f == nil {
		return nil
	}

	var conditions []*qdrant.Condition

	if f.AvailableOnly {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "available",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Boolean{
							Boolean: true,
						},
					},
				},
			},
		})
	}

	if len(f.Categories) > 0 {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "category",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keywords{
							Keywords: &qdrant.RepeatedStrings{
								Strings: f.Categories,
							},
						},
					},
				},
			},
		})
	}

	if len(conditions) == 0 {
		return nil
	}

	return &qdrant.Filter{
		Must: conditions,
	}
}

// keywordCondition builds an exact-match condition on a keyword field.
func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{
						Keyword: value,
					},
				},
			},
		},
	}
}

// scoredPointsToResults converts Qdrant scored points to SearchResults.
func scoredPointsToResults(points []*qdrant.ScoredPoint) []SearchResult {
	results := make([]SearchResult, 0, len(points))

	for _, p := range points {
		results = append(results, SearchResult{
			ID:      pointIDToString(p.Id),
			Score:   p.Score,
			Payload: extractPayload(p.Payload),
		})
	}

	return results
}

// pointIDToString renders a Qdrant point ID as a string.
func pointIDToString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	}
	return ""
}

// extractPayload extracts ProductPayload from a Qdrant payload map.
// Absent fields keep their zero value.
func extractPayload(payload map[string]*qdrant.Value) ProductPayload {
	result := ProductPayload{
		ProductID:      getStringValue(payload, "product_id"),
		Title:          getStringValue(payload, "title"),
		Price:          getFloatValue(payload, "price"),
		Category:       getStringValue(payload, "category"),
		Brand:          getStringValue(payload, "brand"),
		Material:       getStringValue(payload, "material"),
		Available:      getBoolValue(payload, "available"),
		PaymentMethods: getStringSliceValue(payload, "payment_methods"),
		Rating:         getFloatValue(payload, "rating"),
		ReviewCount:    getIntValue(payload, "review_count"),
	}

	if v := getStringValue(payload, "indexed_at"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			result.IndexedAt = t
		}
	}

	return result
}

// Helper functions to extract values from Qdrant payload

func getStringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}

func getIntValue(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		if iv, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
			return int(iv.IntegerValue)
		}
	}
	return 0
}

func getFloatValue(payload map[string]*qdrant.Value, key string) float64 {
	if v, ok := payload[key]; ok {
		switch fv := v.Kind.(type) {
		case *qdrant.Value_DoubleValue:
			return fv.DoubleValue
		case *qdrant.Value_IntegerValue:
			return float64(fv.IntegerValue)
		}
	}
	return 0
}

func getBoolValue(payload map[string]*qdrant.Value, key string) bool {
	if v, ok := payload[key]; ok {
		if bv, ok := v.Kind.(*qdrant.Value_BoolValue); ok {
			return bv.BoolValue
		}
	}
	return false
}

func getStringSliceValue(payload map[string]*qdrant.Value, key string) []string {
	if v, ok := payload[key]; ok {
		if lv, ok := v.Kind.(*qdrant.Value_ListValue); ok {
			result := make([]string, 0, len(lv.ListValue.Values))
			for _, item := range lv.ListValue.Values {
				if sv, ok := item.Kind.(*qdrant.Value_StringValue); ok {
					result = append(result, sv.StringValue)
				}
			}
			return result
		}
	}
	return nil
}
