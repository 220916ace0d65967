package recommend

import (
	"context"
	"time"

	"github.com/fincommerce/recommender/internal/pkg/logger"
)

// Retrieval is the supplier's answer: the candidate batch plus whether
// hybrid (dense+sparse fusion) search produced it.
type Retrieval struct {
	Candidates []Candidate
	Hybrid     bool
}

// Supplier retrieves scored candidates for a query. It may return fewer
// than breadth candidates, or none at all.
type Supplier interface {
	Retrieve(ctx context.Context, qc QueryContext, breadth int) (Retrieval, error)
}

// Config holds pipeline tuning parameters.
type Config struct {
	// Lambda is the MMR relevance/diversity tradeoff.
	Lambda float64

	// DefaultTopK is used when a request carries no top_k.
	DefaultTopK int

	// BreadthMultiplier widens the supplier request so constraint
	// filtering has room to work: breadth = top_k * multiplier.
	BreadthMultiplier int

	// MaxBreadth caps the supplier request size.
	MaxBreadth int
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Lambda:            0.7,
		DefaultTopK:       15,
		BreadthMultiplier: 4,
		MaxBreadth:        200,
	}
}

// StageObserver receives per-stage latencies. Optional.
type StageObserver func(stage string, elapsed time.Duration)

// Pipeline runs one ranking computation per request:
// retrieve -> dedupe -> filter -> diversify -> rerank -> assemble.
// Every stage consumes the previous stage's output and produces a fresh
// sequence; an empty intermediate set flows forward to an empty final
// result instead of an error.
type Pipeline struct {
	supplier Supplier
	resolver Resolver
	config   Config
	log      *logger.Logger
	observe  StageObserver
}

// NewPipeline creates a pipeline with explicit collaborators.
func NewPipeline(supplier Supplier, resolver Resolver, config Config, log *logger.Logger) *Pipeline {
	if config.Lambda < 0 || config.Lambda > 1 {
		config.Lambda = 0.7
	}
	if config.DefaultTopK < 1 {
		config.DefaultTopK = 15
	}
	if config.BreadthMultiplier < 1 {
		config.BreadthMultiplier = 4
	}
	if config.MaxBreadth < 1 {
		config.MaxBreadth = 200
	}
	return &Pipeline{
		supplier: supplier,
		resolver: resolver,
		config:   config,
		log:      log,
	}
}

// SetObserver installs a per-stage latency callback.
func (p *Pipeline) SetObserver(fn StageObserver) {
	p.observe = fn
}

// Run executes the pipeline for one request. Upstream failures degrade
// to an empty result with Degraded set; they never surface as errors.
// The only error returned is context cancellation, in which case partial
// results are discarded.
func (p *Pipeline) Run(ctx context.Context, qc QueryContext) (*Result, error) {
	topK := qc.TopK
	if topK < 1 {
		topK = p.config.DefaultTopK
	}

	breadth := topK * p.config.BreadthMultiplier
	if breadth > p.config.MaxBreadth {
		breadth = p.config.MaxBreadth
	}

	res := &Result{
		Recommendations: []RankedResult{},
		Timestamp:       time.Now().UTC(),
	}

	start := time.Now()
	retrieval, err := p.supplier.Retrieve(ctx, qc, breadth)
	p.stageDone("retrieve", start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.Warn("supplier unavailable, serving empty result", "error", err)
		res.Degraded = true
		return res, nil
	}
	res.Applied.HybridSearch = retrieval.Hybrid

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	candidates := Dedupe(retrieval.Candidates)

	start = time.Now()
	filtered, applied := Filter(candidates, qc)
	p.stageDone("filter", start)
	applied.HybridSearch = res.Applied.HybridSearch
	res.Applied = applied

	start = time.Now()
	diversified := Diversify(filtered, p.config.Lambda, topK)
	p.stageDone("diversify", start)

	start = time.Now()
	reranked := Rerank(diversified)
	p.stageDone("rerank", start)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	start = time.Now()
	res.Recommendations = Assemble(ctx, reranked, p.resolver, topK)
	p.stageDone("assemble", start)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	p.log.Debug("pipeline complete",
		"retrieved", len(retrieval.Candidates),
		"filtered", len(filtered),
		"returned", len(res.Recommendations),
		"degraded", res.Degraded,
	)

	return res, nil
}

func (p *Pipeline) stageDone(stage string, start time.Time) {
	if p.observe != nil {
		p.observe(stage, time.Since(start))
	}
}
