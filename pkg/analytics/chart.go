package analytics

const vegaLiteSchema = "https://vega.github.io/schema/vega-lite/v5.json"

var chartMarks = map[ChartType]string{
	ChartBar:        "bar",
	ChartStackedBar: "bar",
	ChartLine:       "line",
	ChartPie:        "arc",
	ChartHeatmap:    "rect",
	ChartTable:      "bar",
}

// BuildChartSpec renders a Vega-Lite specification for the result rows
func BuildChartSpec(dsl *DSL, rows []Row) map[string]interface{} {
	if rows == nil {
		rows = []Row{}
	}

	chart := ChartHint{}
	if dsl.Chart != nil {
		chart = *dsl.Chart
	}

	metric := dsl.MetricAlias()
	dims := make([]string, len(dsl.Dimensions))
	for i, d := range dsl.Dimensions {
		dims[i] = sanitizeAlias(d, "field")
	}

	x := chart.X
	if x == "" {
		x = metric
		if len(dims) > 0 {
			x = dims[0]
		}
	}
	y := chart.Y
	if y == "" {
		y = metric
	}
	series := chart.Series
	if series == "" && len(dims) > 1 {
		series = dims[1]
	}

	mark, ok := chartMarks[chart.Type]
	if !ok {
		mark = "bar"
	}

	var encoding map[string]interface{}
	switch chart.Type {
	case ChartPie:
		encoding = map[string]interface{}{
			"theta": encodingField(y, "quantitative"),
			"color": encodingField(x, "nominal"),
		}
	case ChartHeatmap:
		yDim := y
		if len(dims) > 1 {
			yDim = dims[1]
		}
		encoding = map[string]interface{}{
			"x":     encodingField(x, "nominal"),
			"y":     encodingField(yDim, "nominal"),
			"color": encodingField(metric, "quantitative"),
		}
	default:
		xType := "nominal"
		if chart.Type == ChartLine {
			xType = "temporal"
		}
		encoding = map[string]interface{}{
			"x": encodingField(x, xType),
			"y": encodingField(y, "quantitative"),
		}
		if series != "" {
			encoding["color"] = encodingField(series, "nominal")
		}
	}

	return map[string]interface{}{
		"$schema":     vegaLiteSchema,
		"description": "AI analytics chart",
		"data":        map[string]interface{}{"values": rows},
		"mark":        mark,
		"encoding":    encoding,
	}
}

func encodingField(field, kind string) map[string]interface{} {
	return map[string]interface{}{"field": field, "type": kind}
}
