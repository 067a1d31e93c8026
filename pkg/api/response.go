package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coworklab/parley/pkg/models"
)

// ErrorResponse is the body written on any non-2xx response, grounded on the
// teacher's internal/server/response.go ErrorResponse.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code alongside the human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response, grounded on the teacher's
// internal/server/response.go writeJSON.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("api: encode response failed", "error", err)
	}
}

// writeAPIError writes an apiError as an ErrorResponse envelope.
func writeAPIError(w http.ResponseWriter, e apiError) {
	if e.status >= http.StatusInternalServerError {
		slog.Default().Error("api: unexpected service error", "code", e.code, "message", e.message)
	}
	writeJSON(w, e.status, ErrorResponse{Error: ErrorDetail{Code: e.code, Message: e.message}})
}

// writeServiceError maps err through mapServiceError and writes it.
func writeServiceError(w http.ResponseWriter, err error) {
	writeAPIError(w, mapServiceError(err))
}

// writeBadRequest writes a plain 400/422 with a freeform message, used for
// malformed request bodies that never reach a service call.
func writeBadRequest(w http.ResponseWriter, status int, message string) {
	writeAPIError(w, apiError{status: status, code: "INVALID_REQUEST", message: message})
}

// writeUnauthorized writes a 401 for a missing or invalid credential.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeAPIError(w, apiError{status: http.StatusUnauthorized, code: "UNAUTHENTICATED", message: message})
}

// loginResponse wraps the authenticated user; the session itself is carried
// by the Set-Cookie header, never in the JSON body.
type loginResponse struct {
	User models.User `json:"user"`
}

// okResponse is the body of actions that otherwise have nothing to return
// (logout, settings toggles, log clear), grounded on the teacher's
// internal/server/response.go writeSuccess.
type okResponse struct {
	OK bool `json:"ok"`
}

// HealthResponse is the body of GET /health and GET /api/internal/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
