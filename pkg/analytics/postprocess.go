package analytics

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Postprocessor fills in the defaults a model routinely omits and clamps the
// row limit. It is the only step allowed to mutate a DSL.
type Postprocessor struct {
	clock            clockwork.Clock
	defaultDaysRange int
	maxRows          int
}

// NewPostprocessor creates a postprocessor. A nil clock uses the wall clock.
func NewPostprocessor(defaultDaysRange, maxRows int, clock clockwork.Clock) *Postprocessor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Postprocessor{
		clock:            clock,
		defaultDaysRange: max(1, defaultDaysRange),
		maxRows:          max(1, maxRows),
	}
}

// Apply defaults the DSL in place and returns it
func (p *Postprocessor) Apply(dsl *DSL) *DSL {
	if len(dsl.Metrics) == 0 {
		dsl.Metrics = []Metric{DefaultMetric()}
	}

	if dsl.Chart == nil {
		dsl.Chart = &ChartHint{}
	}

	if len(dsl.Filters) == 0 {
		dsl.Filters = []Filter{{
			Field: timestampColumn,
			Op:    OpGte,
			Value: ScalarValue(defaultStart(p.clock, p.defaultDaysRange)),
		}}
	}

	dsl.Limit = clampLimit(dsl.Limit, p.maxRows)

	if dsl.Intent == IntentTable {
		dsl.Chart.Type = ChartTable
	}

	if dsl.Chart.Type == "" {
		if dsl.Intent == IntentTrend {
			dsl.Chart.Type = ChartLine
		} else {
			dsl.Chart.Type = ChartBar
		}
	}

	if dsl.Dimensions == nil {
		dsl.Dimensions = []string{}
	}

	return dsl
}

// defaultStart is the lower bound used when no creation-time filter exists
func defaultStart(clock clockwork.Clock, days int) string {
	return clock.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
}

func clampLimit(limit, maxRows int) int {
	return max(1, min(limit, maxRows))
}
