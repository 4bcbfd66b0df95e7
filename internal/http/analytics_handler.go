package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/internal/http/middleware"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/ratelimiter"
)

// maxRequestBodyBytes bounds the analytics request payload
const maxRequestBodyBytes = 64 << 10

// AnalyticsHandler handles HTTP requests related to analytics
type AnalyticsHandler struct {
	service domain.AnalyticsService
	limiter *ratelimiter.RateLimiter
	logger  logger.Logger
}

// NewAnalyticsHandler creates a new analytics handler. A nil limiter
// disables rate limiting.
func NewAnalyticsHandler(
	service domain.AnalyticsService,
	limiter *ratelimiter.RateLimiter,
	logger logger.Logger,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		limiter: limiter,
		logger:  logger,
	}
}

// RegisterRoutes registers the analytics-related routes
func (h *AnalyticsHandler) RegisterRoutes(mux *http.ServeMux) {
	var query http.Handler = http.HandlerFunc(h.handleQuery)
	if h.limiter != nil {
		query = middleware.RateLimitMiddleware(h.limiter, h.logger)(query)
	}

	mux.Handle("/api/v1/analytics/query", middleware.RequestIDMiddleware(query))
}

// handleQuery answers a free-text analytics question
func (h *AnalyticsHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())

	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, requestID,
			analytics.NewError(CodeMethodNotAllowed, "Method not allowed", "Use POST"))
		return
	}

	var req domain.AnalyticsQueryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WithField("request_id", requestID).WithField("error", err.Error()).Error("Failed to decode analytics query request")
		writeErrorResponse(w, http.StatusBadRequest, requestID,
			analytics.NewError(CodeInvalidRequest, "Invalid request payload", `Send a JSON body like {"query": "..."}`))
		return
	}

	if err := req.Validate(); err != nil {
		message := err.Error()
		var validationErr domain.ValidationError
		if errors.As(err, &validationErr) {
			message = validationErr.Message
		}
		writeErrorResponse(w, http.StatusBadRequest, requestID,
			analytics.NewError(CodeInvalidRequest, message, "Describe the report you need in plain text"))
		return
	}

	result, err := h.service.Query(r.Context(), req.Query, requestID)
	if err != nil {
		var analyticsErr *analytics.Error
		if errors.As(err, &analyticsErr) {
			h.logger.WithField("request_id", requestID).
				WithField("code", analyticsErr.Code).
				WithField("error", analyticsErr.Message).
				Warn("Analytics query rejected")
			writeErrorResponse(w, http.StatusBadRequest, requestID, analyticsErr)
			return
		}

		h.logger.WithField("request_id", requestID).WithField("error", err.Error()).Error("Analytics query failed")
		writeErrorResponse(w, http.StatusInternalServerError, requestID,
			analytics.NewError(CodeInternalError, err.Error(), internalErrorHint))
		return
	}

	writeJSON(w, http.StatusOK, result)
}
