package recommend

// Filter applies the constraint predicates to the candidate list in a
// fixed order: availability, budget, category, brand, material, payment
// method. Availability is a base condition and may legitimately empty
// the set. Every later predicate is soft: if applying it would yield an
// empty working set it is skipped and the working set is kept unchanged,
// so partial personalization wins over zero results.
//
// The returned AppliedFilters reports, per predicate, whether it was
// attempted and removed at least one candidate. A skipped or
// ineffective predicate reports false.
//
// Pure function: the input slice is never mutated and the result is a
// fresh slice.
func Filter(candidates []Candidate, qc QueryContext) ([]Candidate, AppliedFilters) {
	var applied AppliedFilters

	working := make([]Candidate, len(candidates))
	copy(working, candidates)

	// Availability is the base condition: unavailable products are never
	// recommended, even when that empties the set.
	next := keep(working, func(c Candidate) bool { return c.Available })
	applied.Availability = len(next) < len(working)
	working = next

	if qc.Budget.Valid() {
		working = applySoft(working, &applied.Budget, func(c Candidate) bool {
			return qc.Budget.Contains(c.Price)
		})
	}

	if len(qc.Preferences.Categories) > 0 {
		set := toSet(qc.Preferences.Categories)
		working = applySoft(working, &applied.Category, func(c Candidate) bool {
			return set[c.Category]
		})
	}

	if len(qc.Preferences.Brands) > 0 {
		set := toSet(qc.Preferences.Brands)
		working = applySoft(working, &applied.Brand, func(c Candidate) bool {
			return set[c.Brand]
		})
	}

	if len(qc.Preferences.Materials) > 0 {
		set := toSet(qc.Preferences.Materials)
		working = applySoft(working, &applied.Material, func(c Candidate) bool {
			return set[c.Material]
		})
	}

	if qc.PreferredPaymentMethod != "" {
		working = applySoft(working, &applied.PaymentMethod, func(c Candidate) bool {
			for _, m := range c.PaymentMethods {
				if m == qc.PreferredPaymentMethod {
					return true
				}
			}
			return false
		})
	}

	return working, applied
}

// applySoft applies pred to the working set with the fallback rule: an
// empty outcome skips the predicate, keeping the prior working set. The
// flag is set only when the predicate survived and removed candidates.
func applySoft(working []Candidate, flag *bool, pred func(Candidate) bool) []Candidate {
	if len(working) == 0 {
		return working
	}

	next := keep(working, pred)
	if len(next) == 0 {
		return working // fallback: over-restrictive predicate is skipped
	}

	*flag = len(next) < len(working)
	return next
}

func keep(in []Candidate, pred func(Candidate) bool) []Candidate {
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
