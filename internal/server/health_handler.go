package server

import (
	"net/http"
	"time"

	"github.com/fincommerce/recommender/internal/qdrant"
)

// HealthHandler serves liveness, readiness and version endpoints.
type HealthHandler struct {
	qdrant  *qdrant.Client
	version string
	started time.Time
}

// NewHealthHandler creates the health handler. qc may be nil when the
// vector store is not part of the deployment (tests, degraded mode).
func NewHealthHandler(qc *qdrant.Client, version string) *HealthHandler {
	return &HealthHandler{
		qdrant:  qc,
		version: version,
		started: time.Now(),
	}
}

// RegisterRoutes registers health routes.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleLiveness)
	mux.HandleFunc("GET /readyz", h.handleReadiness)
	mux.HandleFunc("GET /v1/health", h.handleHealth)
	mux.HandleFunc("GET /v1/version", h.handleVersion)
}

// handleLiveness answers as long as the process serves requests.
func (h *HealthHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadiness answers 200 only when the vector store is reachable.
func (h *HealthHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.qdrant != nil {
		if err := h.qdrant.HealthCheck(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "vector store unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]string{}

	body := map[string]any{
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if h.qdrant != nil {
		if err := h.qdrant.HealthCheck(r.Context()); err != nil {
			status = "degraded"
			components["qdrant"] = "unreachable"
		} else {
			components["qdrant"] = "ok"
			if v, err := h.qdrant.GetVersion(r.Context()); err == nil {
				body["qdrant_version"] = v
			}
		}
	}

	body["status"] = status
	body["components"] = components
	writeJSON(w, http.StatusOK, body)
}

func (h *HealthHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}
