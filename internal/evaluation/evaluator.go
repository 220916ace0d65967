package evaluation

import (
	"context"
	"sync"

	"github.com/fincommerce/recommender/internal/recommend"
)

// evalDepth is how many results each evaluated query requests; deep
// enough that Recall@K is meaningful for the usual K values.
const evalDepth = 100

// Ranker runs the recommendation pipeline for a query.
// recommend.Pipeline implements it.
type Ranker interface {
	Run(ctx context.Context, qc recommend.QueryContext) (*recommend.Result, error)
}

// Evaluator scores the ranking pipeline against loaded relevance
// judgments.
type Evaluator struct {
	ranker    Ranker
	mu        sync.RWMutex
	judgments map[string]map[string]int // queryID -> productID -> relevance
}

// NewEvaluator creates an evaluator over the given ranker.
func NewEvaluator(ranker Ranker) *Evaluator {
	return &Evaluator{
		ranker:    ranker,
		judgments: make(map[string]map[string]int),
	}
}

// LoadJudgments merges relevance judgments into the evaluator.
func (e *Evaluator) LoadJudgments(judgments []RelevanceJudgment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, j := range judgments {
		if e.judgments[j.QueryID] == nil {
			e.judgments[j.QueryID] = make(map[string]int)
		}
		e.judgments[j.QueryID][j.ProductID] = j.Relevance
	}
}

// JudgmentCount returns the number of labeled queries.
func (e *Evaluator) JudgmentCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.judgments)
}

// EvaluateQuery runs the pipeline for one query and scores the ranked
// list against its judgments.
func (e *Evaluator) EvaluateQuery(ctx context.Context, queryID, queryText string, ks []int) (*QueryResult, error) {
	resp, err := e.ranker.Run(ctx, recommend.QueryContext{
		Query: queryText,
		TopK:  evalDepth,
	})
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	qJudgments := e.judgments[queryID]
	e.mu.RUnlock()

	relevances := make([]int, len(resp.Recommendations))
	for i, r := range resp.Recommendations {
		if qJudgments != nil {
			relevances[i] = qJudgments[r.ID]
		}
	}

	result := &QueryResult{
		QueryID:     queryID,
		Query:       queryText,
		NDCG:        make(map[int]float64),
		Recall:      make(map[int]float64),
		Precision:   make(map[int]float64),
		HitRate:     make(map[int]float64),
		MRR:         MRR(relevances, 1),
		AP:          AveragePrecision(relevances, 1),
		ResultCount: len(resp.Recommendations),
		Degraded:    resp.Degraded,
	}
	for _, k := range ks {
		result.NDCG[k] = NDCG(relevances, k)
		result.Recall[k] = Recall(relevances, k, 1)
		result.Precision[k] = Precision(relevances, k, 1)
		result.HitRate[k] = HitRate(relevances, k, 1)
	}

	return result, nil
}

// Summarize aggregates query results into means.
func (e *Evaluator) Summarize(results []*QueryResult) *Summary {
	if len(results) == 0 {
		return &Summary{}
	}

	summary := &Summary{
		QueryCount:    len(results),
		MeanNDCG:      make(map[int]float64),
		MeanRecall:    make(map[int]float64),
		MeanPrecision: make(map[int]float64),
		MeanHitRate:   make(map[int]float64),
	}

	for _, r := range results {
		summary.MeanMRR += r.MRR
		summary.MAP += r.AP
		if r.Degraded {
			summary.DegradedCount++
		}
		for k, v := range r.NDCG {
			summary.MeanNDCG[k] += v
		}
		for k, v := range r.Recall {
			summary.MeanRecall[k] += v
		}
		for k, v := range r.Precision {
			summary.MeanPrecision[k] += v
		}
		for k, v := range r.HitRate {
			summary.MeanHitRate[k] += v
		}
	}

	n := float64(len(results))
	summary.MeanMRR /= n
	summary.MAP /= n
	for k := range summary.MeanNDCG {
		summary.MeanNDCG[k] /= n
	}
	for k := range summary.MeanRecall {
		summary.MeanRecall[k] /= n
	}
	for k := range summary.MeanPrecision {
		summary.MeanPrecision[k] /= n
	}
	for k := range summary.MeanHitRate {
		summary.MeanHitRate[k] /= n
	}

	return summary
}
