package analytics

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/asaskevich/govalidator"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const parseHint = "Try rephrasing query with explicit metric and dimension"

// ParseDSL decodes a JSON object into a DSL, applying field defaults and
// checking the structural shape. Semantic checks (known fields, dimension
// count) are left to the compiler.
func ParseDSL(data []byte) (*DSL, error) {
	if !gjson.ValidBytes(data) {
		return nil, newParseError("DSL is not valid JSON", parseHint)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, newParseError("DSL must be a JSON object", parseHint)
	}

	dsl := NewDSL()

	// limit is decoded separately so integral floats and out-of-range
	// integers are accepted and clamped later
	if limit := gjson.GetBytes(data, "limit"); limit.Exists() {
		value, err := parseLimit(limit)
		if err != nil {
			return nil, err
		}
		if data, err = sjson.DeleteBytes(data, "limit"); err != nil {
			return nil, newParseError("DSL does not match the expected shape", err.Error())
		}
		if value != nil {
			dsl.Limit = *value
		}
	}

	if err := json.Unmarshal(data, dsl); err != nil {
		return nil, newParseError("DSL does not match the expected shape", err.Error())
	}

	if dsl.Dimensions == nil {
		dsl.Dimensions = []string{}
	}
	if dsl.Filters == nil {
		dsl.Filters = []Filter{}
	}
	if dsl.TimeGrain == "" {
		dsl.TimeGrain = TimeGrainNone
	}
	if dsl.Limit <= 0 {
		dsl.Limit = 1
	}

	if err := validateShape(dsl); err != nil {
		return nil, err
	}

	return dsl, nil
}

// parseLimit accepts any integral JSON number and saturates it to the int
// range. A null limit keeps the default.
func parseLimit(limit gjson.Result) (*int, error) {
	switch limit.Type {
	case gjson.Null:
		return nil, nil
	case gjson.Number:
	default:
		return nil, newParseError("DSL does not match the expected shape", "limit must be an integer")
	}

	f := limit.Float()
	if math.IsNaN(f) || f != math.Trunc(f) {
		return nil, newParseError("DSL does not match the expected shape", "limit must be an integer")
	}

	var value int
	switch {
	case f >= float64(math.MaxInt):
		value = math.MaxInt
	case f <= float64(math.MinInt):
		value = math.MinInt
	default:
		value = int(f)
	}
	return &value, nil
}

func validateShape(dsl *DSL) error {
	if _, err := govalidator.ValidateStruct(dsl); err != nil {
		return newParseError("DSL failed validation", err.Error())
	}

	for i := range dsl.Metrics {
		if _, err := govalidator.ValidateStruct(dsl.Metrics[i]); err != nil {
			return newParseError(fmt.Sprintf("metric %d is invalid", i), err.Error())
		}
	}

	for i := range dsl.Filters {
		if _, err := govalidator.ValidateStruct(dsl.Filters[i]); err != nil {
			return newParseError(fmt.Sprintf("filter %d is invalid", i), err.Error())
		}
		if !dsl.Filters[i].Value.IsSet() {
			return newParseError(fmt.Sprintf("filter %d is invalid", i), "value is required")
		}
	}

	if dsl.Chart != nil {
		if _, err := govalidator.ValidateStruct(dsl.Chart); err != nil {
			return newParseError("chart hint is invalid", err.Error())
		}
	}

	return nil
}
