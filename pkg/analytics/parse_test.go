package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSL_Defaults(t *testing.T) {
	dsl, err := ParseDSL([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, IntentDistribution, dsl.Intent)
	assert.Equal(t, []Metric{DefaultMetric()}, dsl.Metrics)
	assert.Equal(t, []string{}, dsl.Dimensions)
	assert.Equal(t, []Filter{}, dsl.Filters)
	assert.Equal(t, TimeGrainNone, dsl.TimeGrain)
	assert.Equal(t, DefaultLimit, dsl.Limit)
	assert.Nil(t, dsl.Chart)
}

func TestParseDSL_FullDocument(t *testing.T) {
	data := `{
		"intent": "trend",
		"metrics": [{"name": "count"}],
		"dimensions": ["created_at", "city"],
		"filters": [
			{"field": "created_at", "op": ">=", "value": "2026-01-01T00:00:00Z"},
			{"field": "priority", "op": "in", "value": [1, 2]}
		],
		"time_grain": "week",
		"limit": 10,
		"chart": {"type": "line", "x": "created_at", "y": "tickets", "series": "city"},
		"comment": "ignored"
	}`

	dsl, err := ParseDSL([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, IntentTrend, dsl.Intent)
	assert.Equal(t, []Metric{{Name: "count", Field: "*", Alias: "tickets"}}, dsl.Metrics)
	assert.Equal(t, []string{"created_at", "city"}, dsl.Dimensions)
	require.Len(t, dsl.Filters, 2)
	assert.Equal(t, "2026-01-01T00:00:00Z", dsl.Filters[0].Value.Scalar())
	assert.True(t, dsl.Filters[1].Value.IsList())
	assert.Equal(t, []interface{}{int64(1), int64(2)}, dsl.Filters[1].Value.List())
	assert.Equal(t, TimeGrainWeek, dsl.TimeGrain)
	assert.Equal(t, 10, dsl.Limit)
	require.NotNil(t, dsl.Chart)
	assert.Equal(t, ChartHint{Type: ChartLine, X: "created_at", Y: "tickets", Series: "city"}, *dsl.Chart)
}

func TestParseDSL_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, dsl *DSL)
	}{
		{
			name: "non-positive limit becomes one",
			data: `{"limit": 0}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, 1, dsl.Limit)
			},
		},
		{
			name: "negative limit becomes one",
			data: `{"limit": -20}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, 1, dsl.Limit)
			},
		},
		{
			name: "integral float limit",
			data: `{"limit": 20.0}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, 20, dsl.Limit)
			},
		},
		{
			name: "exponent limit",
			data: `{"limit": 1e3}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, 1000, dsl.Limit)
			},
		},
		{
			name: "huge limit saturates",
			data: `{"limit": 1e30}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, math.MaxInt, dsl.Limit)
			},
		},
		{
			name: "integer beyond int64 saturates",
			data: `{"limit": 123456789012345678901234567890}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, math.MaxInt, dsl.Limit)
			},
		},
		{
			name: "huge negative limit becomes one",
			data: `{"limit": -1e30}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, 1, dsl.Limit)
			},
		},
		{
			name: "null limit keeps the default",
			data: `{"limit": null}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, DefaultLimit, dsl.Limit)
			},
		},
		{
			name: "null collections",
			data: `{"dimensions": null, "filters": null, "time_grain": null, "chart": null}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, []string{}, dsl.Dimensions)
				assert.Equal(t, []Filter{}, dsl.Filters)
				assert.Equal(t, TimeGrainNone, dsl.TimeGrain)
				assert.Nil(t, dsl.Chart)
			},
		},
		{
			name: "empty time grain",
			data: `{"time_grain": ""}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, TimeGrainNone, dsl.TimeGrain)
			},
		},
		{
			name: "chart without type",
			data: `{"chart": {"x": "city"}}`,
			check: func(t *testing.T, dsl *DSL) {
				require.NotNil(t, dsl.Chart)
				assert.Equal(t, ChartType(""), dsl.Chart.Type)
			},
		},
		{
			name: "empty metrics stay empty",
			data: `{"metrics": []}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Empty(t, dsl.Metrics)
			},
		},
		{
			name: "mixed ints and floats become floats",
			data: `{"filters": [{"field": "priority", "op": "in", "value": [1, 2.5]}]}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, []interface{}{float64(1), 2.5}, dsl.Filters[0].Value.List())
			},
		},
		{
			name: "numeric scalar",
			data: `{"filters": [{"field": "priority", "op": ">", "value": 3}]}`,
			check: func(t *testing.T, dsl *DSL) {
				assert.Equal(t, int64(3), dsl.Filters[0].Value.Scalar())
				assert.False(t, dsl.Filters[0].Value.IsList())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsl, err := ParseDSL([]byte(tt.data))
			require.NoError(t, err)
			tt.check(t, dsl)
		})
	}
}

func TestParseDSL_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `intent: trend`},
		{"truncated json", `{"intent": "trend"`},
		{"array", `[{"intent": "trend"}]`},
		{"string", `"trend"`},
		{"unknown intent", `{"intent": "forecast"}`},
		{"empty intent", `{"intent": ""}`},
		{"unknown metric", `{"metrics": [{"name": "sum", "field": "priority"}]}`},
		{"dimensions not a list", `{"dimensions": "city"}`},
		{"unknown operator", `{"filters": [{"field": "city", "op": "like", "value": "A%"}]}`},
		{"missing operator", `{"filters": [{"field": "city", "value": "Astana"}]}`},
		{"missing field", `{"filters": [{"op": "=", "value": "Astana"}]}`},
		{"missing value", `{"filters": [{"field": "city", "op": "="}]}`},
		{"boolean value", `{"filters": [{"field": "city", "op": "=", "value": true}]}`},
		{"null value", `{"filters": [{"field": "city", "op": "=", "value": null}]}`},
		{"object value", `{"filters": [{"field": "city", "op": "=", "value": {"a": 1}}]}`},
		{"mixed list", `{"filters": [{"field": "city", "op": "in", "value": ["Astana", 1]}]}`},
		{"nested list", `{"filters": [{"field": "city", "op": "in", "value": [["Astana"]]}]}`},
		{"unknown time grain", `{"time_grain": "year"}`},
		{"fractional limit", `{"limit": 2.5}`},
		{"string limit", `{"limit": "ten"}`},
		{"boolean limit", `{"limit": true}`},
		{"list limit", `{"limit": [10]}`},
		{"unknown chart type", `{"chart": {"type": "scatter"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDSL([]byte(tt.data))
			requireCode(t, err, CodeDSLParseError)
		})
	}
}

func TestParseDSL_InvalidJSONHint(t *testing.T) {
	_, err := ParseDSL([]byte(`not json`))
	require.Error(t, err)

	analyticsErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Try rephrasing query with explicit metric and dimension", analyticsErr.Hint)
}

func TestDSL_JSONRoundTrip(t *testing.T) {
	dsl := NewDSL()
	dsl.Dimensions = []string{"city"}
	dsl.Filters = []Filter{{Field: "city", Op: OpIn, Value: ListValue("Astana", "Almaty")}}
	dsl.Chart = &ChartHint{Type: ChartBar, X: "city"}

	data, err := json.Marshal(dsl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"intent": "distribution",
		"metrics": [{"name": "count", "field": "*", "as": "tickets"}],
		"dimensions": ["city"],
		"filters": [{"field": "city", "op": "in", "value": ["Astana", "Almaty"]}],
		"time_grain": "null",
		"limit": 100,
		"chart": {"type": "bar", "x": "city"}
	}`, string(data))

	parsed, err := ParseDSL(data)
	require.NoError(t, err)
	assert.Equal(t, dsl, parsed)
}

func TestFilterValue_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    FilterValue
		expected string
	}{
		{"string", ScalarValue("Astana"), `"Astana"`},
		{"int", ScalarValue(3), `3`},
		{"float", ScalarValue(2.5), `2.5`},
		{"list", ListValue("a", "b"), `["a","b"]`},
		{"empty list", ListValue(), `[]`},
		{"unset", FilterValue{}, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}

func TestIntentAndGrainHelpers(t *testing.T) {
	assert.True(t, IntentDistribution.IsAggregate())
	assert.True(t, IntentTrend.IsAggregate())
	assert.True(t, IntentTopN.IsAggregate())
	assert.True(t, IntentComparison.IsAggregate())
	assert.False(t, IntentTable.IsAggregate())
	assert.False(t, Intent("forecast").IsAggregate())

	assert.False(t, TimeGrainNone.IsSet())
	assert.False(t, TimeGrain("").IsSet())
	assert.True(t, TimeGrainDay.IsSet())
}

func TestErrorHelpers(t *testing.T) {
	err := NewError(CodeSQLTimeout, "Analytics query timed out", "Reduce date range or remove extra dimensions")
	assert.Equal(t, "sql_timeout: Analytics query timed out (Reduce date range or remove extra dimensions)", err.Error())
	assert.Equal(t, "llm_empty: LLM returned empty response", NewError(CodeLLMEmpty, "LLM returned empty response", "").Error())

	wrapped := fmt.Errorf("execute: %w", err)
	analyticsErr, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Same(t, err, analyticsErr)
	assert.Equal(t, CodeSQLTimeout, ErrorCode(wrapped))

	assert.Equal(t, "", ErrorCode(assert.AnError))
	_, ok = AsError(nil)
	assert.False(t, ok)
}
