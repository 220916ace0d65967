// Package recommend implements the product ranking pipeline: constraint
// filtering with per-predicate fallback, MMR diversification, blended
// reranking, and result assembly.
package recommend

import "time"

// Candidate is one retrieved item under consideration by the pipeline.
// Candidates are created fresh per request at the supplier boundary and
// discarded after the response is produced.
type Candidate struct {
	// ID is the stable product identifier.
	ID string

	// RelevanceScore is the similarity returned by the supplier. It is
	// only comparable within one retrieval batch.
	RelevanceScore float64

	// Price is the product price, non-negative.
	Price float64

	// Category, Brand and Material are flat attributes. Empty string
	// means unknown/unspecified.
	Category string
	Brand    string
	Material string

	// Available indicates whether the product can currently be sold.
	Available bool

	// PaymentMethods lists the accepted payment methods.
	PaymentMethods []string

	// Rating is the average product rating in [0,5], 0 if unknown.
	Rating float64

	// ReviewCount is the number of reviews, non-negative.
	ReviewCount int

	// FinalScore is the blended score. Populated by Rerank only;
	// undefined before that stage.
	FinalScore float64
}

// Budget is an optional price range constraint.
type Budget struct {
	Min float64
	Max float64
}

// Valid reports whether the budget describes a usable range. A malformed
// budget (negative bounds or min > max) is treated as no constraint.
func (b *Budget) Valid() bool {
	if b == nil {
		return false
	}
	return b.Min >= 0 && b.Max >= 0 && b.Min <= b.Max
}

// Contains reports whether price falls inside the budget.
func (b *Budget) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// Preferences holds optional attribute preference sets. An empty set
// means no constraint on that attribute.
type Preferences struct {
	Categories []string
	Brands     []string
	Materials  []string
}

// QueryContext is the immutable per-request input to the pipeline.
type QueryContext struct {
	// Query is the free-text query forwarded to the supplier.
	Query string

	// QueryVector is the embedded query, when the caller has already
	// computed it. Empty means the supplier embeds the text itself.
	QueryVector []float32

	// Budget is the optional price range.
	Budget *Budget

	// Preferences are the optional attribute preference sets.
	Preferences Preferences

	// PreferredPaymentMethod is the optional payment method constraint.
	PreferredPaymentMethod string

	// TopK is the number of results to return.
	TopK int
}

// RatingInfo is the rating block on an assembled result.
type RatingInfo struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// RankedResult is one assembled output record with its resolved fields.
type RankedResult struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Price          float64    `json:"price"`
	Category       string     `json:"category"`
	Brand          string     `json:"brand"`
	Material       string     `json:"material"`
	Image          string     `json:"image,omitempty"`
	Rating         RatingInfo `json:"rating"`
	PaymentMethods []string   `json:"payment_methods"`
	Score          float64    `json:"score"`
}

// Record is a full product record resolved from the repository during
// assembly.
type Record struct {
	ID             string
	Title          string
	Description    string
	Price          float64
	Category       string
	Brand          string
	Material       string
	Image          string
	Rating         float64
	ReviewCount    int
	PaymentMethods []string
}

// AppliedFilters reports which personalization predicates were attempted
// and actually removed at least one candidate. A predicate skipped by the
// fallback rule, or one that matched everything, reports false.
type AppliedFilters struct {
	Availability  bool `json:"availability"`
	HybridSearch  bool `json:"hybrid_search"`
	Budget        bool `json:"budget"`
	Category      bool `json:"category"`
	Brand         bool `json:"brand"`
	Material      bool `json:"material"`
	PaymentMethod bool `json:"payment_method"`
}

// Result is the terminal pipeline output exposed to the caller.
type Result struct {
	Recommendations []RankedResult `json:"recommendations"`
	Applied         AppliedFilters `json:"personalization_applied"`

	// Degraded is set when an upstream collaborator was unreachable and
	// the pipeline fell back to an empty or partial result.
	Degraded bool `json:"degraded"`

	Timestamp time.Time `json:"timestamp"`
}
