package recommend

import "context"

// Resolver looks up full product records by ID during assembly.
// Implementations return (nil, nil) when the ID is unknown; errors mean
// the repository itself failed.
type Resolver interface {
	Resolve(ctx context.Context, id string) (*Record, error)
}

// Assemble resolves ranked candidate IDs against the repository and
// builds the output records in ranked order. Unresolvable IDs are
// skipped without consuming a slot; assembly stops once topK resolved
// results have been emitted or the ranked list is exhausted. Fewer than
// topK results is expected when resolution failures pile up, not an
// error.
func Assemble(ctx context.Context, ranked []Candidate, repo Resolver, topK int) []RankedResult {
	if topK < 0 {
		topK = 0
	}
	results := make([]RankedResult, 0, min(topK, len(ranked)))

	for _, c := range ranked {
		if len(results) >= topK {
			break
		}
		if ctx.Err() != nil {
			break
		}

		rec, err := repo.Resolve(ctx, c.ID)
		if err != nil || rec == nil {
			continue // unresolved, skip
		}

		results = append(results, RankedResult{
			ID:             rec.ID,
			Title:          rec.Title,
			Description:    rec.Description,
			Price:          rec.Price,
			Category:       rec.Category,
			Brand:          rec.Brand,
			Material:       rec.Material,
			Image:          rec.Image,
			Rating:         RatingInfo{Rate: rec.Rating, Count: rec.ReviewCount},
			PaymentMethods: rec.PaymentMethods,
			Score:          c.FinalScore,
		})
	}

	return results
}
