package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/hashdrop"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes appropriate error response based on error type.
// Client errors get a message naming the violated constraint; server errors
// get a fixed message and the detail is only logged.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hashdrop.ErrMissingFields):
		WriteError(w, http.StatusBadRequest, "missing_fields", "file, filename and contentType are required")
	case errors.Is(err, hashdrop.ErrTooLarge):
		WriteError(w, http.StatusBadRequest, "too_large", "Content exceeds the maximum upload size")
	case errors.Is(err, hashdrop.ErrHashMismatch):
		WriteError(w, http.StatusBadRequest, "hash_mismatch", "Supplied hash does not match the content digest")
	case errors.Is(err, hashdrop.ErrInvalidDigest):
		WriteError(w, http.StatusBadRequest, "invalid_digest", "Digest must be 64 lowercase hex characters")
	case errors.Is(err, ErrMissingParameter):
		WriteError(w, http.StatusBadRequest, "missing_parameter", "digest query parameter is required")
	case errors.Is(err, hashdrop.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request")
	case errors.Is(err, hashdrop.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Object not found")
	case errors.Is(err, hashdrop.ErrEnvironmentMissing):
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Platform context not found")
	case errors.Is(err, hashdrop.ErrNotConfigured):
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "not_configured", "External base URL is not configured")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
