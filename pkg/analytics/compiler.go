package analytics

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jonboulle/clockwork"
)

// Parameter names emitted by the compiler
const (
	ParamLimit          = "limit"
	ParamDefaultStartAt = "default_start_at"
)

// CompiledQuery is a single SELECT with ":name" placeholders and its values
type CompiledQuery struct {
	SQL    string                 `json:"sql"`
	Params map[string]interface{} `json:"params"`
}

// Compiler turns a DSL into a parameterized SELECT over the analytics table.
// Values only ever reach the statement as bound parameters.
type Compiler struct {
	resolver         *FieldResolver
	clock            clockwork.Clock
	defaultDaysRange int
	maxRows          int
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithClock sets the clock used for the default lookback window
func WithClock(clock clockwork.Clock) CompilerOption {
	return func(c *Compiler) {
		c.clock = clock
	}
}

// NewCompiler creates a compiler for the resolver's dialect
func NewCompiler(resolver *FieldResolver, defaultDaysRange, maxRows int, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		resolver:         resolver,
		clock:            clockwork.NewRealClock(),
		defaultDaysRange: max(1, defaultDaysRange),
		maxRows:          max(1, maxRows),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dialect returns the SQL dialect the compiler emits
func (c *Compiler) Dialect() Dialect {
	return c.resolver.Dialect()
}

type dimension struct {
	expr  string
	alias string
}

// paramSet records parameter names in the order squirrel collects args
type paramSet struct {
	names  []string
	values map[string]interface{}
}

func (p *paramSet) add(name string, value interface{}) {
	p.names = append(p.names, name)
	p.values[name] = value
}

// Compile builds the SQL for a DSL
func (c *Compiler) Compile(dsl *DSL) (*CompiledQuery, error) {
	if dsl == nil {
		return nil, newParseError("DSL is required", "")
	}

	if len(dsl.Dimensions) > MaxDimensions {
		return nil, NewError(CodeDSLTooManyDimensions,
			fmt.Sprintf("Too many dimensions: %d", len(dsl.Dimensions)),
			fmt.Sprintf("Use up to %d", MaxDimensions))
	}

	dims, err := c.resolveDimensions(dsl.Dimensions, dsl.TimeGrain)
	if err != nil {
		return nil, err
	}

	params := &paramSet{values: make(map[string]interface{})}

	var builder squirrel.SelectBuilder
	switch {
	case dsl.Intent.IsAggregate():
		if len(dims) == 0 {
			dims, err = c.defaultDimension(dsl)
			if err != nil {
				return nil, err
			}
		}
		builder, err = c.aggregateQuery(dsl, dims)
	case dsl.Intent == IntentTable:
		builder = c.tableQuery(dims)
	default:
		err = NewError(CodeDSLUnknownIntent,
			fmt.Sprintf("Unsupported intent: %s", dsl.Intent),
			"Use distribution, trend, top_n, comparison or table")
	}
	if err != nil {
		return nil, err
	}

	builder, err = c.applyFilters(builder, dsl.Filters, params)
	if err != nil {
		return nil, err
	}

	params.add(ParamLimit, clampLimit(dsl.Limit, c.maxRows))
	builder = builder.Suffix("LIMIT ?", params.values[ParamLimit])

	sql, args, err := builder.PlaceholderFormat(namedPlaceholders(params.names)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL: %w", err)
	}
	if len(args) != len(params.names) {
		return nil, fmt.Errorf("compiled %d arguments for %d parameters", len(args), len(params.names))
	}

	return &CompiledQuery{
		SQL:    sql,
		Params: params.values,
	}, nil
}

func (c *Compiler) resolveDimensions(names []string, grain TimeGrain) ([]dimension, error) {
	dims := make([]dimension, 0, len(names))
	for _, name := range names {
		expr, err := c.resolver.Dimension(name, grain)
		if err != nil {
			return nil, err
		}
		dims = append(dims, dimension{expr: expr, alias: sanitizeAlias(name, "field")})
	}
	return dims, nil
}

func (c *Compiler) defaultDimension(dsl *DSL) ([]dimension, error) {
	name := "ticket_type"
	if dsl.Intent == IntentTrend {
		name = timestampColumn
	}
	return c.resolveDimensions([]string{name}, dsl.TimeGrain)
}

// aggregateQuery groups by every dimension and counts rows
func (c *Compiler) aggregateQuery(dsl *DSL, dims []dimension) (squirrel.SelectBuilder, error) {
	if len(dims) == 0 {
		return squirrel.SelectBuilder{}, NewError(CodeDSLGroupByRequired,
			"Aggregation requires at least one dimension",
			"Add a dimension such as ticket_type or city")
	}

	metric := dsl.MetricAlias()
	columns := make([]string, 0, len(dims)+1)
	groupBy := make([]string, 0, len(dims))
	for _, d := range dims {
		columns = append(columns, fmt.Sprintf("%s AS %s", d.expr, d.alias))
		groupBy = append(groupBy, d.expr)
	}
	columns = append(columns, "COUNT(*) AS "+metric)

	direction := "DESC"
	if dsl.Intent == IntentTrend {
		direction = "ASC"
	}

	return squirrel.Select(columns...).
		From(TableName).
		GroupBy(groupBy...).
		OrderBy(metric + " " + direction), nil
}

// tableQuery selects raw rows without grouping
func (c *Compiler) tableQuery(dims []dimension) squirrel.SelectBuilder {
	if len(dims) == 0 {
		city, _ := c.resolver.Column("city")
		return squirrel.Select(
			"external_ticket_id AS ticket_id",
			"created_at AS created_at",
			"ticket_type AS ticket_type",
			city+" AS city",
			"priority AS priority",
		).From(TableName).OrderBy("created_at DESC")
	}

	columns := make([]string, 0, len(dims))
	orderBy := make([]string, 0, len(dims))
	for _, d := range dims {
		columns = append(columns, fmt.Sprintf("%s AS %s", d.expr, d.alias))
		orderBy = append(orderBy, d.alias)
	}
	return squirrel.Select(columns...).From(TableName).OrderBy(orderBy...)
}

// applyFilters adds one predicate per filter plus the default lower bound on
// the creation timestamp when no filter targets it
func (c *Compiler) applyFilters(builder squirrel.SelectBuilder, filters []Filter, params *paramSet) (squirrel.SelectBuilder, error) {
	hasTimestampFilter := false

	for i, f := range filters {
		column, err := c.resolver.FilterColumn(f.Field)
		if err != nil {
			return builder, err
		}
		if isTimestampField(f.Field) {
			hasTimestampFilter = true
		}

		switch f.Op {
		case OpIn:
			values := f.Value.List()
			if !f.Value.IsList() || len(values) == 0 {
				return builder, NewError(CodeDSLInvalidFilter,
					fmt.Sprintf("IN filter on %s requires a non-empty list", f.Field), "")
			}
			placeholders := make([]string, len(values))
			for j, v := range values {
				placeholders[j] = "?"
				params.add(fmt.Sprintf("f_%d_%d", i, j), v)
			}
			builder = builder.Where(squirrel.Expr(
				fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), values...))
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
			if f.Value.IsList() || !f.Value.IsSet() {
				return builder, NewError(CodeDSLInvalidFilter,
					fmt.Sprintf("Filter %s %s requires a single value", f.Field, f.Op), "Use op \"in\" for lists")
			}
			params.add(fmt.Sprintf("f_%d", i), f.Value.Scalar())
			builder = builder.Where(squirrel.Expr(
				fmt.Sprintf("%s %s ?", column, f.Op), f.Value.Scalar()))
		default:
			return builder, NewError(CodeDSLInvalidFilter,
				fmt.Sprintf("Unsupported filter operator: %s", f.Op), "Use =, !=, >, >=, <, <= or in")
		}
	}

	if !hasTimestampFilter {
		start := defaultStart(c.clock, c.defaultDaysRange)
		params.add(ParamDefaultStartAt, start)
		builder = builder.Where(squirrel.Expr(timestampColumn+" >= ?", start))
	}

	return builder, nil
}
