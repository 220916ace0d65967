package server

import (
	"encoding/json"
	"net/http"

	"github.com/fincommerce/recommender/internal/profile"
)

// ProfileHandler serves user preference profiles.
type ProfileHandler struct {
	svc *profile.Service
}

// NewProfileHandler creates the profile handler. svc may be nil, in
// which case every route answers 503.
func NewProfileHandler(svc *profile.Service) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// RegisterRoutes registers profile routes.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /v1/profiles/{id}", h.handlePut)
	mux.HandleFunc("GET /v1/profiles/{id}", h.handleGet)
	mux.HandleFunc("DELETE /v1/profiles/{id}", h.handleDelete)
}

func (h *ProfileHandler) available(w http.ResponseWriter) bool {
	if h.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "profile storage is not configured")
		return false
	}
	return true
}

func (h *ProfileHandler) handlePut(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.UserID = id

	if err := h.svc.Save(r.Context(), &p); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
