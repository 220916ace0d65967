package recommend

// Diversify applies Maximal Marginal Relevance over candidate
// categories, greedily selecting up to k candidates that balance
// relevance against category spread.
//
// The input must already be sorted by descending relevance: the first
// candidate is seeded unconditionally. Each following pick maximizes
//
//	mmr(c) = lambda*score(c) - (1-lambda)*diversity(c)
//
// where diversity(c) is the fraction of already-selected candidates
// whose category differs from c's. Ties break by input order. Lambda
// close to 1 behaves like pure relevance ranking; near 0 it maximizes
// category spread.
//
// When len(candidates) <= k the input order is returned unchanged (as a
// fresh slice). k <= 0 yields an empty slice.
func Diversify(candidates []Candidate, lambda float64, k int) []Candidate {
	if k <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}

	if len(candidates) <= k {
		out := make([]Candidate, len(candidates))
		copy(out, candidates)
		return out
	}

	selected := make([]Candidate, 0, k)
	picked := make([]bool, len(candidates))

	// Seed with the highest-scored candidate.
	selected = append(selected, candidates[0])
	picked[0] = true

	for len(selected) < k {
		bestIdx := -1
		var bestScore float64

		for i, c := range candidates {
			if picked[i] {
				continue
			}

			differ := 0
			for _, s := range selected {
				if s.Category != c.Category {
					differ++
				}
			}
			diversity := float64(differ) / float64(len(selected))

			mmr := lambda*c.RelevanceScore - (1-lambda)*diversity

			// Strict comparison keeps the first-seen candidate on ties.
			if bestIdx < 0 || mmr > bestScore {
				bestIdx = i
				bestScore = mmr
			}
		}

		if bestIdx < 0 {
			break
		}
		selected = append(selected, candidates[bestIdx])
		picked[bestIdx] = true
	}

	return selected
}
