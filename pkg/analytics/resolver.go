package analytics

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
)

// TableName is the only table analytics queries may read
const TableName = "ticket_results"

const timestampColumn = "created_at"

// Dialect is the SQL variant of the analytics store
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectForDriver maps a database/sql driver name to its dialect
func DialectForDriver(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driverName)
	}
}

// PlaceholderFormat returns the driver placeholder style for the dialect
func (d Dialect) PlaceholderFormat() squirrel.PlaceholderFormat {
	if d == DialectPostgres {
		return squirrel.Dollar
	}
	return squirrel.Question
}

// allowedFields lists the DSL field names in prompt order
var allowedFields = []string{
	"created_at", "city", "ticket_type", "sentiment", "segment",
	"language", "priority", "office_id", "manager_id",
}

type dialectExpressions struct {
	city    string
	buckets map[TimeGrain]string
}

var dialects = map[Dialect]dialectExpressions{
	DialectSQLite: {
		city: "COALESCE(NULLIF(json_extract(payload, '$.city'), ''), 'unknown')",
		buckets: map[TimeGrain]string{
			TimeGrainDay:   "strftime('%%Y-%%m-%%d', %s)",
			TimeGrainWeek:  "strftime('%%Y-W%%W', %s)",
			TimeGrainMonth: "strftime('%%Y-%%m', %s)",
		},
	},
	DialectPostgres: {
		city: "COALESCE(NULLIF(payload->>'city', ''), 'unknown')",
		buckets: map[TimeGrain]string{
			TimeGrainDay:   "to_char(date_trunc('day', %s), 'YYYY-MM-DD')",
			TimeGrainWeek:  "to_char(date_trunc('week', %s), 'IYYY-\"W\"IW')",
			TimeGrainMonth: "to_char(date_trunc('month', %s), 'YYYY-MM')",
		},
	},
}

// FieldResolver maps DSL field names to column expressions of one dialect.
// It is built once and only read afterwards, so it is safe to share.
type FieldResolver struct {
	dialect Dialect
	fields  map[string]string
	buckets map[TimeGrain]string
}

// NewFieldResolver builds the field map for a dialect
func NewFieldResolver(dialect Dialect) (*FieldResolver, error) {
	exprs, ok := dialects[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	fields := make(map[string]string, len(allowedFields))
	for _, name := range allowedFields {
		fields[name] = name
	}
	fields["city"] = exprs.city

	return &FieldResolver{
		dialect: dialect,
		fields:  fields,
		buckets: exprs.buckets,
	}, nil
}

// Dialect returns the dialect the resolver was built for
func (r *FieldResolver) Dialect() Dialect {
	return r.dialect
}

// Column resolves a plain field name, honoring the "type" alias
func (r *FieldResolver) Column(name string) (string, bool) {
	expr, ok := r.fields[canonicalField(name)]
	return expr, ok
}

// Dimension resolves a grouping field. The creation timestamp (or "date")
// is bucketed when a time grain is set.
func (r *FieldResolver) Dimension(name string, grain TimeGrain) (string, error) {
	canonical := canonicalField(name)
	if (canonical == timestampColumn || canonical == "date") && grain.IsSet() {
		return r.TimeBucket(r.fields[timestampColumn], grain)
	}

	expr, ok := r.fields[canonical]
	if !ok {
		return "", NewError(CodeDSLUnknownField,
			fmt.Sprintf("Unknown field: %s", name),
			"Allowed fields: "+strings.Join(allowedFields, ", "))
	}
	return expr, nil
}

// FilterColumn resolves the field a filter applies to
func (r *FieldResolver) FilterColumn(name string) (string, error) {
	expr, ok := r.Column(name)
	if !ok {
		return "", NewError(CodeDSLUnknownFilter,
			fmt.Sprintf("Unknown filter field: %s", name),
			"Allowed fields: "+strings.Join(allowedFields, ", "))
	}
	return expr, nil
}

// TimeBucket wraps a timestamp expression in the dialect's bucketing function
func (r *FieldResolver) TimeBucket(column string, grain TimeGrain) (string, error) {
	pattern, ok := r.buckets[grain]
	if !ok {
		return "", NewError(CodeDSLInvalidTimeGrain,
			fmt.Sprintf("Unsupported time grain: %s", grain),
			"Use day, week or month")
	}
	return fmt.Sprintf(pattern, column), nil
}

func canonicalField(name string) string {
	canonical := strings.ToLower(strings.TrimSpace(name))
	if canonical == "type" {
		return "ticket_type"
	}
	return canonical
}

func isTimestampField(name string) bool {
	return canonicalField(name) == timestampColumn
}

// sanitizeAlias keeps lower-cased ASCII letters, digits and underscores
func sanitizeAlias(name, fallback string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// reservedWords are keywords that cannot appear as a bare column alias in
// PostgreSQL or SQLite
var reservedWords = map[string]struct{}{
	"abort": {}, "all": {}, "analyse": {}, "analyze": {}, "and": {}, "any": {},
	"array": {}, "as": {}, "asc": {}, "autoincrement": {}, "between": {},
	"both": {}, "by": {}, "case": {}, "cast": {}, "check": {}, "collate": {},
	"column": {}, "constraint": {}, "cross": {}, "current_date": {},
	"current_time": {}, "current_timestamp": {}, "current_user": {},
	"default": {}, "deferrable": {}, "desc": {}, "distinct": {}, "do": {},
	"else": {}, "end": {}, "escape": {}, "except": {}, "exists": {},
	"false": {}, "fetch": {}, "for": {}, "foreign": {}, "from": {}, "full": {},
	"glob": {}, "group": {}, "having": {}, "in": {}, "index": {}, "inner": {},
	"intersect": {}, "into": {}, "is": {}, "isnull": {}, "join": {},
	"lateral": {}, "leading": {}, "left": {}, "like": {}, "limit": {},
	"localtime": {}, "localtimestamp": {}, "natural": {}, "not": {},
	"notnull": {}, "null": {}, "offset": {}, "on": {}, "only": {}, "or": {},
	"order": {}, "outer": {}, "placing": {}, "primary": {}, "raise": {},
	"references": {}, "regexp": {}, "returning": {}, "right": {},
	"select": {}, "session_user": {}, "set": {}, "some": {}, "symmetric": {},
	"table": {}, "then": {}, "to": {}, "trailing": {}, "transaction": {},
	"true": {}, "union": {}, "unique": {}, "user": {}, "using": {},
	"values": {}, "variadic": {}, "when": {}, "where": {}, "window": {},
	"with": {},
}

// isPlainIdentifier reports whether a sanitized alias can be used unquoted
func isPlainIdentifier(alias string) bool {
	if alias == "" || (alias[0] >= '0' && alias[0] <= '9') {
		return false
	}
	_, reserved := reservedWords[alias]
	return !reserved
}
