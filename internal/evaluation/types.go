// Package evaluation measures ranking quality offline against labeled
// judgments and online from feedback events.
package evaluation

// RelevanceJudgment is a human-labeled relevance grade for a
// query-product pair.
type RelevanceJudgment struct {
	QueryID   string `json:"query_id"`
	ProductID string `json:"product_id"`
	Relevance int    `json:"relevance"` // 0=not relevant, 1=partially, 2=relevant, 3=highly
}

// QueryResult contains ranking metrics for a single evaluated query.
type QueryResult struct {
	QueryID     string          `json:"query_id"`
	Query       string          `json:"query"`
	NDCG        map[int]float64 `json:"ndcg"`      // NDCG@K
	Recall      map[int]float64 `json:"recall"`    // Recall@K
	Precision   map[int]float64 `json:"precision"` // Precision@K
	HitRate     map[int]float64 `json:"hit_rate"`  // HitRate@K
	MRR         float64         `json:"mrr"`
	AP          float64         `json:"ap"`
	ResultCount int             `json:"result_count"`
	Degraded    bool            `json:"degraded"`
}

// Summary aggregates metrics across evaluated queries.
type Summary struct {
	QueryCount    int             `json:"query_count"`
	MeanNDCG      map[int]float64 `json:"mean_ndcg"`
	MeanRecall    map[int]float64 `json:"mean_recall"`
	MeanPrecision map[int]float64 `json:"mean_precision"`
	MeanHitRate   map[int]float64 `json:"mean_hit_rate"`
	MeanMRR       float64         `json:"mean_mrr"`
	MAP           float64         `json:"map"`
	DegradedCount int             `json:"degraded_count"`
}
