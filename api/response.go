package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/siamlabs/siam/internal/knowledge"
	"github.com/siamlabs/siam/internal/rag"
)

// writeJSON writes a JSON response with the given status code.
// Encoding failures after WriteHeader cannot reach the client; they are
// logged and the connection is left to the server to close.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// errorStatus maps domain errors to HTTP status codes and stable error
// codes for the response envelope.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rag.ErrInvalidQuery), errors.Is(err, knowledge.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, knowledge.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, rag.ErrProviderUnavailable), errors.Is(err, knowledge.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
