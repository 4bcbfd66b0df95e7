package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opencensus.io/trace"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/tracing"
)

// codeInternal labels metrics for failures outside the analytics taxonomy
const codeInternal = "internal_error"

// AnalyticsServiceConfig contains the collaborators of the analytics service
type AnalyticsServiceConfig struct {
	Interpreter   domain.QueryInterpreter
	Repository    domain.AnalyticsRepository
	Compiler      *analytics.Compiler
	SQLTimeout    time.Duration
	SummaryLocale string
	Logger        logger.Logger
}

// AnalyticsService sequences interpretation, compilation, validation,
// execution and presentation of one analytics request
type AnalyticsService struct {
	interpreter   domain.QueryInterpreter
	repo          domain.AnalyticsRepository
	compiler      *analytics.Compiler
	sqlTimeout    time.Duration
	summaryLocale string
	logger        logger.Logger
}

// Ensure AnalyticsService implements the interface
var _ domain.AnalyticsService = (*AnalyticsService)(nil)

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(cfg AnalyticsServiceConfig) *AnalyticsService {
	return &AnalyticsService{
		interpreter:   cfg.Interpreter,
		repo:          cfg.Repository,
		compiler:      cfg.Compiler,
		sqlTimeout:    cfg.SQLTimeout,
		summaryLocale: cfg.SummaryLocale,
		logger:        cfg.Logger,
	}
}

// Query interprets free text and runs the resulting DSL. An empty request id
// is replaced by a generated one.
func (s *AnalyticsService) Query(ctx context.Context, query string, requestID string) (*domain.AnalyticsResult, error) {
	requestID = ensureRequestID(requestID)
	ctx, span := s.startSpan(ctx, "Query", requestID)

	result, err := func() (*domain.AnalyticsResult, error) {
		dsl, err := s.interpreter.Interpret(ctx, query)
		if err != nil {
			s.logger.WithField("request_id", requestID).
				WithField("error", err.Error()).
				Warn("Failed to interpret analytics query")
			return nil, err
		}
		return s.run(ctx, dsl, requestID)
	}()

	s.finish(ctx, span, err)
	return result, err
}

// RunDSL compiles, validates and executes an already interpreted DSL
func (s *AnalyticsService) RunDSL(ctx context.Context, dsl *analytics.DSL, requestID string) (*domain.AnalyticsResult, error) {
	requestID = ensureRequestID(requestID)
	ctx, span := s.startSpan(ctx, "RunDSL", requestID)

	result, err := s.run(ctx, dsl, requestID)

	s.finish(ctx, span, err)
	return result, err
}

func (s *AnalyticsService) run(ctx context.Context, dsl *analytics.DSL, requestID string) (*domain.AnalyticsResult, error) {
	compiled, err := tracing.TraceMethodWithResult(ctx, "AnalyticsService", "Compile", func(context.Context) (*analytics.CompiledQuery, error) {
		return s.compiler.Compile(dsl)
	})
	if err != nil {
		s.logger.WithField("request_id", requestID).WithField("error", err.Error()).Warn("Failed to compile analytics DSL")
		return nil, err
	}

	if err := analytics.ValidateSQL(compiled.SQL); err != nil {
		s.logger.WithField("request_id", requestID).
			WithField("sql", compiled.SQL).
			WithField("error", err.Error()).
			Error("Compiled SQL rejected by safety validator")
		return nil, err
	}

	s.logger.WithField("request_id", requestID).WithField("sql", compiled.SQL).Info("Executing analytics query")

	start := time.Now()
	rows, err := tracing.TraceMethodWithResult(ctx, "AnalyticsService", "Execute", func(ctx context.Context) ([]analytics.Row, error) {
		return s.repo.ExecuteSelect(ctx, compiled.SQL, compiled.Params, s.sqlTimeout)
	})
	tracing.RecordSQLLatency(ctx, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &domain.AnalyticsResult{
		RequestID: requestID,
		DSL:       dsl,
		SQL:       compiled.SQL,
		Data:      rows,
		ChartSpec: analytics.BuildChartSpec(dsl, rows),
		Summary:   analytics.BuildSummary(dsl, rows, s.summaryLocale),
	}, nil
}

func (s *AnalyticsService) startSpan(ctx context.Context, method, requestID string) (context.Context, *trace.Span) {
	ctx, span := tracing.StartServiceSpan(ctx, "AnalyticsService", method)
	span.AddAttributes(trace.StringAttribute("request_id", requestID))
	return ctx, span
}

func (s *AnalyticsService) finish(ctx context.Context, span *trace.Span, err error) {
	code := analytics.ErrorCode(err)
	if err != nil && code == "" {
		code = codeInternal
	}
	tracing.RecordQueryOutcome(ctx, code)
	tracing.EndSpan(span, err)
}

func ensureRequestID(requestID string) string {
	if requestID == "" {
		return uuid.NewString()
	}
	return requestID
}
