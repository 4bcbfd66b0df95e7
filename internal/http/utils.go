package http

import (
	"encoding/json"
	"net/http"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
)

// Codes reported by the HTTP layer itself
const (
	CodeInvalidRequest   = "invalid_request"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternalError    = "internal_error"
)

// internalErrorHint is returned with every unexpected failure
const internalErrorHint = "Check backend logs for request details."

// writeJSON writes a JSON response with the given status code and data.
// It sets the Content-Type header to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes {request_id, error:{code, message, hint}}
func writeErrorResponse(w http.ResponseWriter, status int, requestID string, err *analytics.Error) {
	writeJSON(w, status, domain.ErrorResponse{
		RequestID: requestID,
		Error:     err,
	})
}
