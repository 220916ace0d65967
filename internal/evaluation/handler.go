package evaluation

import (
	"encoding/json"
	"net/http"
)

// Handler exposes evaluation over HTTP.
type Handler struct {
	evaluator *Evaluator
	feedback  *FeedbackTracker
}

// NewHandler creates an evaluation handler. feedback may be nil.
func NewHandler(e *Evaluator, feedback *FeedbackTracker) *Handler {
	return &Handler{evaluator: e, feedback: feedback}
}

// RegisterRoutes registers evaluation routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluation/evaluate", h.handleEvaluate)
	mux.HandleFunc("POST /v1/evaluation/judgments", h.handleLoadJudgments)
	mux.HandleFunc("GET /v1/evaluation/engagement", h.handleEngagement)
}

// EvaluateRequest names the labeled queries to run and the cutoffs to
// report.
type EvaluateRequest struct {
	Queries []struct {
		ID    string `json:"id"`
		Query string `json:"query"`
	} `json:"queries"`
	Ks []int `json:"ks"`
}

// EvaluateResponse carries per-query results plus the aggregate.
type EvaluateResponse struct {
	Results []*QueryResult `json:"results"`
	Summary *Summary       `json:"summary"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Queries) == 0 {
		http.Error(w, "queries are required", http.StatusBadRequest)
		return
	}
	if len(req.Ks) == 0 {
		req.Ks = []int{1, 3, 5, 10}
	}

	ctx := r.Context()
	results := make([]*QueryResult, 0, len(req.Queries))
	for _, q := range req.Queries {
		res, err := h.evaluator.EvaluateQuery(ctx, q.ID, q.Query, req.Ks)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		results = append(results, res)
	}

	resp := EvaluateResponse{
		Results: results,
		Summary: h.evaluator.Summarize(results),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) handleLoadJudgments(w http.ResponseWriter, r *http.Request) {
	var judgments []RelevanceJudgment
	if err := json.NewDecoder(r.Body).Decode(&judgments); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.evaluator.LoadJudgments(judgments)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEngagement(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		http.Error(w, "feedback tracking is not enabled", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.feedback.Engagement())
}
