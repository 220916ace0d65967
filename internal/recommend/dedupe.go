package recommend

// Dedupe removes duplicate candidate IDs, keeping the highest
// RelevanceScore per ID. Order follows first appearance of each ID.
// Always returns a fresh slice.
func Dedupe(candidates []Candidate) []Candidate {
	if len(candidates) == 0 {
		return []Candidate{}
	}

	best := make(map[string]int, len(candidates)) // id -> index in out
	out := make([]Candidate, 0, len(candidates))

	for _, c := range candidates {
		idx, seen := best[c.ID]
		if !seen {
			best[c.ID] = len(out)
			out = append(out, c)
			continue
		}
		if c.RelevanceScore > out[idx].RelevanceScore {
			out[idx] = c
		}
	}

	return out
}
