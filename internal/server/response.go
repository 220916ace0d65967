package server

import (
	"encoding/json"
	"net/http"

	"github.com/fincommerce/recommender/internal/pkg/errors"
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already written; nothing left to do.
		_ = err
	}
}

// writeError writes a plain error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps service errors onto HTTP status codes.
func writeAppError(w http.ResponseWriter, err error) {
	errors.WriteError(w, err)
}
