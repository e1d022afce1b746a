// Package handlers provides the HTTP API of the investing monitor.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "investing_monitor/internal/errors"
)

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Printf("Error encoding response: %v", err)
		}
	}
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// respondError maps an application error to its HTTP status and writes a
// JSON error body.
func respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		log.Printf("Internal error: %v", err)
	}
	respondJSON(w, status, errorResponse{
		Error: err.Error(),
		Kind:  apperrors.Kind(err),
	})
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Validation("invalid request body: " + err.Error())
	}
	return nil
}

// portfolioID extracts the {id} route parameter.
func portfolioID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation("invalid portfolio id")
	}
	return id, nil
}
