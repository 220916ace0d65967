package recommend

import "sort"

// Blend weights. The coefficients keep business signals from dominating
// semantic relevance: a 5-star product with a thousand reviews adds at
// most 1.5 to a relevance score that is typically in [0,1].
const (
	ratingWeight = 0.1
	reviewWeight = 0.001
)

// Rerank computes the blended final score for each candidate and sorts
// descending by it:
//
//	final_score = relevance_score + 0.1*rating + 0.001*review_count
//
// The sort is stable, so equal final scores keep input order. Scores are
// rederived from the raw fields on every call, making Rerank idempotent.
// Always returns a fresh slice.
func Rerank(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	for i := range out {
		out[i].FinalScore = out[i].RelevanceScore +
			ratingWeight*out[i].Rating +
			reviewWeight*float64(out[i].ReviewCount)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalScore > out[j].FinalScore
	})

	return out
}
