package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
)

func TestAnalyticsQueryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"plain query", "tickets by city", "tickets by city", false},
		{"surrounding whitespace", "  tickets by city \n", "tickets by city", false},
		{"empty", "", "", true},
		{"blank", "   \t", "", true},
		{"too long", strings.Repeat("a", MaxQueryLength+1), "", true},
		{"at the limit", strings.Repeat("a", MaxQueryLength), strings.Repeat("a", MaxQueryLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &AnalyticsQueryRequest{Query: tt.query}
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.IsType(t, ValidationError{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Query)
		})
	}
}

func TestAnalyticsResult_JSON(t *testing.T) {
	dsl := analytics.NewDSL()
	dsl.Dimensions = []string{"city"}

	result := AnalyticsResult{
		RequestID: "req-1",
		DSL:       dsl,
		SQL:       "SELECT 1",
		Data: []analytics.Row{
			analytics.NewRow([]string{"city", "tickets"}, []interface{}{"Astana", int64(3)}),
		},
		ChartSpec: map[string]interface{}{"mark": "bar"},
		Summary:   "Found 1 rows",
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.JSONEq(t, `"req-1"`, string(decoded["request_id"]))
	assert.Equal(t, `[{"city":"Astana","tickets":3}]`, string(decoded["data"]))
	assert.JSONEq(t, `{"mark":"bar"}`, string(decoded["chart_spec"]))
	assert.Contains(t, string(decoded["dsl"]), `"as":"tickets"`)
	assert.Contains(t, decoded, "sql")
	assert.Contains(t, decoded, "summary")
}
