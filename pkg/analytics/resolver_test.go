package analytics

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectForDriver(t *testing.T) {
	tests := []struct {
		driver   string
		expected Dialect
		wantErr  bool
	}{
		{"sqlite3", DialectSQLite, false},
		{"sqlite", DialectSQLite, false},
		{"postgres", DialectPostgres, false},
		{"PostgreSQL", DialectPostgres, false},
		{"pgx", DialectPostgres, false},
		{"mysql", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			dialect, err := DialectForDriver(tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dialect)
		})
	}
}

func TestDialect_PlaceholderFormat(t *testing.T) {
	assert.Equal(t, squirrel.Dollar, DialectPostgres.PlaceholderFormat())
	assert.Equal(t, squirrel.Question, DialectSQLite.PlaceholderFormat())
}

func TestNewFieldResolver_UnknownDialect(t *testing.T) {
	_, err := NewFieldResolver("oracle")
	assert.Error(t, err)
}

func TestFieldResolver_Column(t *testing.T) {
	sqlite, err := NewFieldResolver(DialectSQLite)
	require.NoError(t, err)
	postgres, err := NewFieldResolver(DialectPostgres)
	require.NoError(t, err)

	for _, name := range allowedFields {
		expr, ok := sqlite.Column(name)
		assert.True(t, ok, name)
		assert.NotEmpty(t, expr)
	}

	expr, ok := sqlite.Column(" Type ")
	assert.True(t, ok)
	assert.Equal(t, "ticket_type", expr)

	expr, _ = sqlite.Column("city")
	assert.Equal(t, "COALESCE(NULLIF(json_extract(payload, '$.city'), ''), 'unknown')", expr)
	expr, _ = postgres.Column("city")
	assert.Equal(t, "COALESCE(NULLIF(payload->>'city', ''), 'unknown')", expr)

	_, ok = sqlite.Column("payload")
	assert.False(t, ok)
	_, ok = sqlite.Column("date")
	assert.False(t, ok)
}

func TestFieldResolver_Dimension(t *testing.T) {
	r, err := NewFieldResolver(DialectSQLite)
	require.NoError(t, err)

	expr, err := r.Dimension("created_at", TimeGrainNone)
	require.NoError(t, err)
	assert.Equal(t, "created_at", expr)

	expr, err = r.Dimension("created_at", TimeGrainDay)
	require.NoError(t, err)
	assert.Equal(t, "strftime('%Y-%m-%d', created_at)", expr)

	expr, err = r.Dimension("DATE", TimeGrainMonth)
	require.NoError(t, err)
	assert.Equal(t, "strftime('%Y-%m', created_at)", expr)

	_, err = r.Dimension("region", TimeGrainNone)
	requireCode(t, err, CodeDSLUnknownField)
	analyticsErr, _ := AsError(err)
	assert.Equal(t, "Unknown field: region", analyticsErr.Message)
	assert.Equal(t, "Allowed fields: created_at, city, ticket_type, sentiment, segment, language, priority, office_id, manager_id", analyticsErr.Hint)

	_, err = r.Dimension("created_at", "quarter")
	requireCode(t, err, CodeDSLInvalidTimeGrain)
}

func TestFieldResolver_FilterColumn(t *testing.T) {
	r, err := NewFieldResolver(DialectPostgres)
	require.NoError(t, err)

	expr, err := r.FilterColumn("manager_id")
	require.NoError(t, err)
	assert.Equal(t, "manager_id", expr)

	_, err = r.FilterColumn("payload")
	requireCode(t, err, CodeDSLUnknownFilter)
}

func TestFieldResolver_TimeBucket(t *testing.T) {
	r, err := NewFieldResolver(DialectPostgres)
	require.NoError(t, err)

	expr, err := r.TimeBucket("created_at", TimeGrainWeek)
	require.NoError(t, err)
	assert.Equal(t, `to_char(date_trunc('week', created_at), 'IYYY-"W"IW')`, expr)

	_, err = r.TimeBucket("created_at", TimeGrainNone)
	requireCode(t, err, CodeDSLInvalidTimeGrain)
}

func TestSanitizeAlias(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"city", "city"},
		{"Ticket_Type", "ticket_type"},
		{"created at", "createdat"},
		{"a-b;c", "abc"},
		{"город", "field"},
		{"", "field"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeAlias(tt.name, "field"), tt.name)
	}
}
