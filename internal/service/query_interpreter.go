package service

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
	"github.com/ticketpulse/ticketpulse/pkg/tracing"
)

// QueryInterpreter asks a text generator for a DSL document and validates it
type QueryInterpreter struct {
	generator     domain.TextGenerator
	postprocessor *analytics.Postprocessor
	logger        logger.Logger
}

var _ domain.QueryInterpreter = (*QueryInterpreter)(nil)

// NewQueryInterpreter creates a new query interpreter
func NewQueryInterpreter(generator domain.TextGenerator, postprocessor *analytics.Postprocessor, logger logger.Logger) *QueryInterpreter {
	return &QueryInterpreter{
		generator:     generator,
		postprocessor: postprocessor,
		logger:        logger,
	}
}

// Interpret turns free text into a defaulted DSL. A completion that holds no
// JSON object gets exactly one repair round.
func (s *QueryInterpreter) Interpret(ctx context.Context, query string) (*analytics.DSL, error) {
	ctx, span := tracing.StartServiceSpan(ctx, "QueryInterpreter", "Interpret")
	dsl, err := s.interpret(ctx, query)
	tracing.EndSpan(span, err)
	return dsl, err
}

func (s *QueryInterpreter) interpret(ctx context.Context, query string) (*analytics.DSL, error) {
	raw, err := s.generator.Generate(ctx, BuildPrompt(query))
	if err != nil {
		return nil, err
	}

	object, ok := extractJSONObject(raw)
	if !ok {
		s.logger.WithField("response", raw).Warn("LLM response is not a JSON object, requesting repair")
		tracing.AddAttribute(ctx, "repair", true)

		fixed, err := s.generator.Generate(ctx, BuildRepairPrompt(raw))
		if err != nil {
			return nil, err
		}

		object, ok = extractJSONObject(fixed)
		if !ok {
			return nil, analytics.NewError(analytics.CodeDSLParseError,
				"LLM response is not valid JSON",
				"Try rephrasing query with explicit metric and dimension")
		}
	}

	dsl, err := analytics.ParseDSL([]byte(object))
	if err != nil {
		s.logger.WithField("dsl", object).WithField("error", err.Error()).Warn("LLM returned an invalid DSL")
		return nil, err
	}

	return s.postprocessor.Apply(dsl), nil
}

// extractJSONObject returns raw when it is a JSON object, otherwise the span
// from the first "{" to the last "}" when that is one. Valid JSON of another
// kind is never searched for an embedded object.
func extractJSONObject(raw string) (string, bool) {
	if gjson.Valid(raw) {
		if gjson.Parse(raw).IsObject() {
			return raw, true
		}
		return "", false
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidate := raw[start : end+1]
		if isJSONObject(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func isJSONObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
