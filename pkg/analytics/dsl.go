package analytics

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Intent is the analytic shape requested by the user
type Intent string

const (
	IntentDistribution Intent = "distribution"
	IntentTrend        Intent = "trend"
	IntentTopN         Intent = "top_n"
	IntentComparison   Intent = "comparison"
	IntentTable        Intent = "table"
)

// IsAggregate reports whether the intent groups rows and counts them
func (i Intent) IsAggregate() bool {
	switch i {
	case IntentDistribution, IntentTrend, IntentTopN, IntentComparison:
		return true
	}
	return false
}

// TimeGrain is the bucketing granularity applied to the creation timestamp
type TimeGrain string

const (
	TimeGrainNone  TimeGrain = "null"
	TimeGrainDay   TimeGrain = "day"
	TimeGrainWeek  TimeGrain = "week"
	TimeGrainMonth TimeGrain = "month"
)

// IsSet reports whether a bucketing granularity was requested
func (g TimeGrain) IsSet() bool {
	return g != "" && g != TimeGrainNone
}

// ChartType is the presentation hint attached to a DSL
type ChartType string

const (
	ChartBar        ChartType = "bar"
	ChartStackedBar ChartType = "stacked_bar"
	ChartLine       ChartType = "line"
	ChartPie        ChartType = "pie"
	ChartHeatmap    ChartType = "heatmap"
	ChartTable      ChartType = "table"
)

// FilterOp is a comparison operator allowed in filters
type FilterOp string

const (
	OpEq  FilterOp = "="
	OpNeq FilterOp = "!="
	OpGt  FilterOp = ">"
	OpGte FilterOp = ">="
	OpLt  FilterOp = "<"
	OpLte FilterOp = "<="
	OpIn  FilterOp = "in"
)

const (
	// MaxDimensions is the largest number of dimensions a query may group by
	MaxDimensions = 4

	DefaultLimit       = 100
	DefaultMetricName  = "count"
	DefaultMetricField = "*"
	DefaultMetricAlias = "tickets"
)

// Metric is an aggregate column. Only COUNT(*) is supported.
type Metric struct {
	Name  string `json:"name" valid:"required,in(count)"`
	Field string `json:"field"`
	Alias string `json:"as"`
}

// DefaultMetric returns the count metric injected when none is requested
func DefaultMetric() Metric {
	return Metric{
		Name:  DefaultMetricName,
		Field: DefaultMetricField,
		Alias: DefaultMetricAlias,
	}
}

// UnmarshalJSON fills omitted metric fields with defaults
func (m *Metric) UnmarshalJSON(data []byte) error {
	type plain Metric
	p := plain(DefaultMetric())
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = Metric(p)
	return nil
}

// Filter is a single WHERE predicate
type Filter struct {
	Field string      `json:"field" valid:"required"`
	Op    FilterOp    `json:"op" valid:"required,in(=|!=|>|>=|<|<=|in)"`
	Value FilterValue `json:"value" valid:"-"`
}

// ChartHint carries the presentation preferences returned by the model
type ChartHint struct {
	Type   ChartType `json:"type" valid:"in(bar|stacked_bar|line|pie|heatmap|table)"`
	X      string    `json:"x,omitempty"`
	Y      string    `json:"y,omitempty"`
	Series string    `json:"series,omitempty"`
}

// DSL is the validated intermediate representation of an analytics request
type DSL struct {
	Intent     Intent     `json:"intent" valid:"required,in(distribution|trend|top_n|comparison|table)"`
	Metrics    []Metric   `json:"metrics" valid:"-"`
	Dimensions []string   `json:"dimensions" valid:"-"`
	Filters    []Filter   `json:"filters" valid:"-"`
	TimeGrain  TimeGrain  `json:"time_grain" valid:"in(day|week|month|null)"`
	Limit      int        `json:"limit" valid:"-"`
	Chart      *ChartHint `json:"chart" valid:"-"`
}

// NewDSL returns a DSL populated with field defaults
func NewDSL() *DSL {
	return &DSL{
		Intent:     IntentDistribution,
		Metrics:    []Metric{DefaultMetric()},
		Dimensions: []string{},
		Filters:    []Filter{},
		TimeGrain:  TimeGrainNone,
		Limit:      DefaultLimit,
	}
}

// MetricAlias returns the output column name of the first metric. The alias
// is sanitized like dimension aliases and falls back to the default when it
// is not a plain identifier, would trip ValidateSQL, or names a grouped
// column of the same query.
func (d *DSL) MetricAlias() string {
	if d == nil || len(d.Metrics) == 0 || d.Metrics[0].Alias == "" {
		return DefaultMetricAlias
	}
	alias := sanitizeAlias(d.Metrics[0].Alias, DefaultMetricAlias)
	if !isPlainIdentifier(alias) || containsForbiddenKeyword(alias+" ") || d.hasDimensionAlias(alias) {
		return DefaultMetricAlias
	}
	return alias
}

func (d *DSL) hasDimensionAlias(alias string) bool {
	if len(d.Dimensions) == 0 {
		// the compiler groups by one of these when no dimension is given
		return alias == "ticket_type" || alias == timestampColumn
	}
	for _, dim := range d.Dimensions {
		if sanitizeAlias(dim, "field") == alias {
			return true
		}
	}
	return false
}

// FilterValue holds either a scalar (string, int64 or float64) or a list of
// scalars of one kind.
type FilterValue struct {
	scalar interface{}
	list   []interface{}
	isList bool
	set    bool
}

// ScalarValue wraps a single filter value
func ScalarValue(v interface{}) FilterValue {
	return FilterValue{scalar: normalizeScalar(v), set: true}
}

// ListValue wraps a list filter value, used with the "in" operator
func ListValue(values ...interface{}) FilterValue {
	list := make([]interface{}, len(values))
	for i, v := range values {
		list[i] = normalizeScalar(v)
	}
	return FilterValue{list: list, isList: true, set: true}
}

// IsList reports whether the value is a list
func (v FilterValue) IsList() bool {
	return v.isList
}

// IsSet reports whether a value was provided
func (v FilterValue) IsSet() bool {
	return v.set
}

// Scalar returns the scalar value, nil for lists
func (v FilterValue) Scalar() interface{} {
	return v.scalar
}

// List returns the list elements, nil for scalars
func (v FilterValue) List() []interface{} {
	return v.list
}

// MarshalJSON implements json.Marshaler
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts a string, a number or a homogeneous list of either
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	result := gjson.ParseBytes(data)

	if result.IsArray() {
		elements := result.Array()
		list := make([]interface{}, 0, len(elements))
		var kind gjson.Type
		hasFloat := false
		for i, el := range elements {
			scalar, err := decodeScalar(el)
			if err != nil {
				return err
			}
			if i > 0 && el.Type != kind {
				return fmt.Errorf("filter value list mixes %s and %s", kind, el.Type)
			}
			kind = el.Type
			if _, ok := scalar.(float64); ok {
				hasFloat = true
			}
			list = append(list, scalar)
		}
		// [1, 2.5] becomes a list of floats
		if hasFloat {
			for i, el := range list {
				if n, ok := el.(int64); ok {
					list[i] = float64(n)
				}
			}
		}
		*v = FilterValue{list: list, isList: true, set: true}
		return nil
	}

	scalar, err := decodeScalar(result)
	if err != nil {
		return err
	}
	*v = FilterValue{scalar: scalar, set: true}
	return nil
}

func decodeScalar(r gjson.Result) (interface{}, error) {
	switch r.Type {
	case gjson.String:
		return r.String(), nil
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			n, err := strconv.ParseInt(r.Raw, 10, 64)
			if err == nil {
				return n, nil
			}
		}
		return r.Float(), nil
	case gjson.Null:
		return nil, fmt.Errorf("filter value must not be null")
	case gjson.True, gjson.False:
		return nil, fmt.Errorf("filter value must be a string or a number, got boolean")
	default:
		return nil, fmt.Errorf("filter value must be a string, a number or a list of them")
	}
}

func normalizeScalar(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
