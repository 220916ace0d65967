package server

import (
	"encoding/json"
	"net/http"

	"github.com/fincommerce/recommender/internal/catalog"
)

// ProductHandler serves catalog CRUD requests.
type ProductHandler struct {
	svc *catalog.Service
}

// NewProductHandler creates the product handler.
func NewProductHandler(svc *catalog.Service) *ProductHandler {
	return &ProductHandler{svc: svc}
}

// RegisterRoutes registers product routes.
func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/products", h.handleList)
	mux.HandleFunc("POST /v1/products", h.handleCreate)
	mux.HandleFunc("GET /v1/products/{id}", h.handleGet)
	mux.HandleFunc("PUT /v1/products/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /v1/products/{id}", h.handleDelete)
}

func (h *ProductHandler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"count":    len(products),
	})
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Create(r.Context(), &p); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The path, not the body, names the product.
	p.ID = id

	if err := h.svc.Update(r.Context(), &p); err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
