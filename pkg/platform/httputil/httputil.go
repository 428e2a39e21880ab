// Package httputil centralizes JSON encoding/decoding and error rendering for
// the HTTP layer so handlers stay thin.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "attest/pkg/domain-errors"
)

// errorResponse is the wire shape for all handler errors.
type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// WriteError renders a domain error as JSON. Non-domain errors collapse to a
// persistence error so internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		de = dErrors.New(dErrors.CodePersistence, "operation failed")
	}
	WriteJSON(w, dErrors.HTTPStatus(de.Code), errorResponse{
		Error:   string(de.Code),
		Message: de.Message,
		Details: de.Details,
	})
}

// Decode parses a JSON request body into T. On failure it writes a validation
// error response and returns ok=false; the handler should return immediately.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid request body"))
		return req, false
	}
	return req, true
}
