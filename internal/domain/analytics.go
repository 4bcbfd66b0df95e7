package domain

import (
	"context"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
)

//go:generate mockgen -destination mocks/mock_analytics_service.go -package mocks github.com/ticketpulse/ticketpulse/internal/domain AnalyticsService
//go:generate mockgen -destination mocks/mock_analytics_repository.go -package mocks github.com/ticketpulse/ticketpulse/internal/domain AnalyticsRepository
//go:generate mockgen -destination mocks/mock_query_interpreter.go -package mocks github.com/ticketpulse/ticketpulse/internal/domain QueryInterpreter
//go:generate mockgen -destination mocks/mock_text_generator.go -package mocks github.com/ticketpulse/ticketpulse/internal/domain TextGenerator

// MaxQueryLength bounds the free text accepted by the analytics endpoint
const MaxQueryLength = 2000

// AnalyticsQueryRequest is the body of POST /api/v1/analytics/query
type AnalyticsQueryRequest struct {
	Query string `json:"query" valid:"required"`
}

// Validate trims the query and checks it is present and not oversized
func (r *AnalyticsQueryRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if _, err := govalidator.ValidateStruct(r); err != nil {
		return NewValidationError("query is required")
	}
	if len(r.Query) > MaxQueryLength {
		return NewValidationError("query is too long")
	}
	return nil
}

// AnalyticsResult is the outcome of one analytics request
type AnalyticsResult struct {
	RequestID string                 `json:"request_id"`
	DSL       *analytics.DSL         `json:"dsl"`
	SQL       string                 `json:"sql"`
	Data      []analytics.Row        `json:"data"`
	ChartSpec map[string]interface{} `json:"chart_spec"`
	Summary   string                 `json:"summary"`
}

// AnalyticsService runs analytics requests end to end
type AnalyticsService interface {
	// Query interprets free text and runs the resulting DSL
	Query(ctx context.Context, query string, requestID string) (*AnalyticsResult, error)
	// RunDSL compiles, validates and executes an already interpreted DSL
	RunDSL(ctx context.Context, dsl *analytics.DSL, requestID string) (*AnalyticsResult, error)
}

// AnalyticsRepository executes validated SELECT statements with ":name"
// placeholders under a deadline
type AnalyticsRepository interface {
	ExecuteSelect(ctx context.Context, sql string, params map[string]interface{}, timeout time.Duration) ([]analytics.Row, error)
}

// QueryInterpreter turns free text into a defaulted DSL
type QueryInterpreter interface {
	Interpret(ctx context.Context, query string) (*analytics.DSL, error)
}

// TextGenerator is a language model completion backend
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrorResponse is the body of every failed analytics request
type ErrorResponse struct {
	RequestID string           `json:"request_id"`
	Error     *analytics.Error `json:"error"`
}
