package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/fincommerce/recommender/internal/bus"
	"github.com/fincommerce/recommender/internal/metrics"
	"github.com/fincommerce/recommender/internal/pkg/logger"
	"github.com/fincommerce/recommender/internal/profile"
	"github.com/fincommerce/recommender/internal/recommend"

	"github.com/google/uuid"
)

// Ranker runs the recommendation pipeline. recommend.Pipeline
// implements it.
type Ranker interface {
	Run(ctx context.Context, qc recommend.QueryContext) (*recommend.Result, error)
}

// RecommendHandler serves recommendation requests.
type RecommendHandler struct {
	ranker   Ranker
	profiles *profile.Service
	events   bus.Bus
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewRecommendHandler creates the recommendation handler. profiles,
// events and m may be nil.
func NewRecommendHandler(ranker Ranker, profiles *profile.Service, events bus.Bus, m *metrics.Metrics, log *logger.Logger) *RecommendHandler {
	return &RecommendHandler{
		ranker:   ranker,
		profiles: profiles,
		events:   events,
		metrics:  m,
		log:      log.WithComponent("recommend"),
	}
}

// RegisterRoutes registers the recommendation routes.
func (h *RecommendHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/recommend", h.handleRecommend)
	// /v1/search is an alias kept for storefront clients that treat
	// recommendations as a search surface.
	mux.HandleFunc("POST /v1/search", h.handleRecommend)
}

// RecommendRequest is the wire-level recommendation request.
type RecommendRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
	Budget *struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"budget,omitempty"`
	Preferences *struct {
		Categories []string `json:"categories,omitempty"`
		Brands     []string `json:"brands,omitempty"`
		Materials  []string `json:"materials,omitempty"`
	} `json:"preferences,omitempty"`
	PreferredPaymentMethod string `json:"preferredPaymentMethod,omitempty"`
	TopK                   int    `json:"top_k,omitempty"`
}

// requestedEvent is the payload published when a request arrives.
type requestedEvent struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id,omitempty"`
	Query     string `json:"query"`
}

// servedEvent is the payload published on reco.served.
type servedEvent struct {
	RequestID  string   `json:"request_id"`
	UserID     string   `json:"user_id,omitempty"`
	Query      string   `json:"query"`
	ProductIDs []string `json:"product_ids"`
	Degraded   bool     `json:"degraded"`
	LatencyMS  int64    `json:"latency_ms"`
}

func (h *RecommendHandler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must be positive")
		return
	}

	qc := recommend.QueryContext{
		Query:                  req.Query,
		PreferredPaymentMethod: req.PreferredPaymentMethod,
		TopK:                   req.TopK,
	}
	if req.Budget != nil {
		qc.Budget = &recommend.Budget{Min: req.Budget.Min, Max: req.Budget.Max}
	}
	if req.Preferences != nil {
		qc.Preferences = recommend.Preferences{
			Categories: req.Preferences.Categories,
			Brands:     req.Preferences.Brands,
			Materials:  req.Preferences.Materials,
		}
	}

	requestID := uuid.NewString()
	ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)

	if h.events != nil {
		topic := bus.TopicRecoRequested
		err := h.events.Publish(ctx, topic, bus.NewEvent(topic, "recommender", requestedEvent{
			RequestID: requestID,
			UserID:    req.UserID,
			Query:     req.Query,
		}))
		if h.metrics != nil {
			h.metrics.RecordBusPublish(topic, err)
		}
	}

	// Stored preferences fill whatever the request left unset.
	if h.profiles != nil && req.UserID != "" {
		qc = h.profiles.Enrich(ctx, req.UserID, qc)
	}

	result, err := h.ranker.Run(ctx, qc)
	latencyMS := time.Since(start).Milliseconds()

	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordRecommendation(latencyMS, 0, false, err)
		}
		if ctx.Err() != nil {
			// Client went away or the deadline passed.
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
			return
		}
		h.log.Error("pipeline failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, "recommendation failed")
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRecommendation(latencyMS, len(result.Recommendations), result.Degraded, nil)
		h.recordConstraintMisses(qc, result)
	}
	h.publishServed(ctx, requestID, req, result, latencyMS)

	w.Header().Set("X-Request-ID", requestID)
	writeJSON(w, http.StatusOK, result)
}

// recordConstraintMisses counts served products that violate a
// requested constraint. Filters relax under fallback, so misses are
// expected; the rate is what matters.
func (h *RecommendHandler) recordConstraintMisses(qc recommend.QueryContext, result *recommend.Result) {
	for _, rec := range result.Recommendations {
		if qc.Budget != nil && qc.Budget.Valid() && !qc.Budget.Contains(rec.Price) {
			h.metrics.RecordConstraintMiss("budget")
		}
		if len(qc.Preferences.Categories) > 0 && !containsString(qc.Preferences.Categories, rec.Category) {
			h.metrics.RecordConstraintMiss("category")
		}
		if len(qc.Preferences.Brands) > 0 && !containsString(qc.Preferences.Brands, rec.Brand) {
			h.metrics.RecordConstraintMiss("brand")
		}
		if len(qc.Preferences.Materials) > 0 && !containsString(qc.Preferences.Materials, rec.Material) {
			h.metrics.RecordConstraintMiss("material")
		}
		if qc.PreferredPaymentMethod != "" && !containsString(rec.PaymentMethods, qc.PreferredPaymentMethod) {
			h.metrics.RecordConstraintMiss("payment_method")
		}
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func (h *RecommendHandler) publishServed(ctx context.Context, requestID string, req RecommendRequest, result *recommend.Result, latencyMS int64) {
	if h.events == nil {
		return
	}

	ids := make([]string, len(result.Recommendations))
	for i, rec := range result.Recommendations {
		ids[i] = rec.ID
	}
	payload := servedEvent{
		RequestID:  requestID,
		UserID:     req.UserID,
		Query:      req.Query,
		ProductIDs: ids,
		Degraded:   result.Degraded,
		LatencyMS:  latencyMS,
	}

	topic := bus.TopicRecoServed
	if result.Degraded {
		topic = bus.TopicRecoDegraded
	}
	err := h.events.Publish(ctx, topic, bus.NewEvent(topic, "recommender", payload))
	if h.metrics != nil {
		h.metrics.RecordBusPublish(topic, err)
	}
	if err != nil {
		h.log.Warn("failed to publish served event", "request_id", requestID, "error", err)
	}
}
