package tracing

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// Outcome values recorded on analytics measures
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	// KeyOutcome is "ok" or "error"
	KeyOutcome = tag.MustNewKey("outcome")
	// KeyCode is the analytics error code, empty on success
	KeyCode = tag.MustNewKey("code")
	// KeyProvider is the text generation provider
	KeyProvider = tag.MustNewKey("provider")

	// MeasureQueries counts analytics requests
	MeasureQueries = stats.Int64("ticketpulse/analytics/queries", "Number of analytics requests", stats.UnitDimensionless)
	// MeasureSQLLatency is the execution time of compiled statements
	MeasureSQLLatency = stats.Float64("ticketpulse/analytics/sql_latency", "Analytics SQL execution latency", stats.UnitMilliseconds)
	// MeasureLLMAttempts counts text generation calls, including retries
	MeasureLLMAttempts = stats.Int64("ticketpulse/llm/attempts", "Number of text generation calls", stats.UnitDimensionless)
)

var (
	QueryCountView = &view.View{
		Name:        "ticketpulse/analytics/query_count",
		Description: "Analytics requests by outcome and error code",
		Measure:     MeasureQueries,
		TagKeys:     []tag.Key{KeyOutcome, KeyCode},
		Aggregation: view.Count(),
	}

	SQLLatencyView = &view.View{
		Name:        "ticketpulse/analytics/sql_latency",
		Description: "Distribution of analytics SQL latency",
		Measure:     MeasureSQLLatency,
		TagKeys:     []tag.Key{KeyOutcome},
		Aggregation: view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	}

	LLMAttemptView = &view.View{
		Name:        "ticketpulse/llm/attempt_count",
		Description: "Text generation calls by provider and outcome",
		Measure:     MeasureLLMAttempts,
		TagKeys:     []tag.Key{KeyProvider, KeyOutcome},
		Aggregation: view.Count(),
	}
)

// AnalyticsViews are registered alongside the metrics exporters
var AnalyticsViews = []*view.View{QueryCountView, SQLLatencyView, LLMAttemptView}

// RegisterAnalyticsViews registers the analytics views
func RegisterAnalyticsViews() error {
	return view.Register(AnalyticsViews...)
}

func outcome(code string, err error) string {
	if err != nil || code != "" {
		return OutcomeError
	}
	return OutcomeOK
}

// RecordQueryOutcome counts one analytics request. code is the analytics
// error code, or empty when the request succeeded.
func RecordQueryOutcome(ctx context.Context, code string) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{
			tag.Upsert(KeyOutcome, outcome(code, nil)),
			tag.Upsert(KeyCode, code),
		},
		MeasureQueries.M(1),
	)
}

// RecordSQLLatency records the execution time of one statement
func RecordSQLLatency(ctx context.Context, elapsed time.Duration, err error) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyOutcome, outcome("", err))},
		MeasureSQLLatency.M(float64(elapsed)/float64(time.Millisecond)),
	)
}

// RecordLLMAttempt counts one text generation call
func RecordLLMAttempt(ctx context.Context, provider string, err error) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{
			tag.Upsert(KeyProvider, provider),
			tag.Upsert(KeyOutcome, outcome("", err)),
		},
		MeasureLLMAttempts.M(1),
	)
}
