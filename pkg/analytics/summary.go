package analytics

import (
	"fmt"
	"strings"
)

type summaryTemplate struct {
	noData     string
	found      string
	noGrouping string
	missing    string
}

// found takes the row count, the grouping and the metric alias/value pair
var summaryTemplates = map[string]summaryTemplate{
	"en": {
		noData:     "No data found for the given filters.",
		found:      "Found %d rows of aggregated data. Grouped by: %s. First result: %s=%v.",
		noGrouping: "no grouping",
		missing:    "n/a",
	},
	"ru": {
		noData:     "Данные не найдены по заданным фильтрам.",
		found:      "Найдено %d строк агрегированных данных. Основная группировка: %s. Первый результат: %s=%v.",
		noGrouping: "без группировки",
		missing:    "нет",
	},
}

// DefaultSummaryLocale is used for unknown locales
const DefaultSummaryLocale = "en"

// SupportedSummaryLocale reports whether summaries exist for a locale
func SupportedSummaryLocale(locale string) bool {
	_, ok := summaryTemplates[strings.ToLower(locale)]
	return ok
}

// BuildSummary returns a one sentence description of the result
func BuildSummary(dsl *DSL, rows []Row, locale string) string {
	tmpl, ok := summaryTemplates[strings.ToLower(locale)]
	if !ok {
		tmpl = summaryTemplates[DefaultSummaryLocale]
	}

	if len(rows) == 0 {
		return tmpl.noData
	}

	grouping := tmpl.noGrouping
	if len(dsl.Dimensions) > 0 {
		grouping = strings.Join(dsl.Dimensions, ", ")
	}

	metric := dsl.MetricAlias()
	value, ok := rows[0].Get(metric)
	if !ok || value == nil {
		value = tmpl.missing
	}

	return fmt.Sprintf(tmpl.found, len(rows), grouping, metric, value)
}
