package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketpulse/ticketpulse/internal/repository/testutil"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
)

const distributionSQL = "SELECT ticket_type AS ticket_type, COUNT(*) AS tickets FROM ticket_results WHERE created_at >= :default_start_at GROUP BY ticket_type ORDER BY tickets DESC LIMIT :limit"

var distributionParams = map[string]interface{}{
	"default_start_at": "2026-02-13T12:00:00Z",
	"limit":            100,
}

func boundSQL(dialect analytics.Dialect) string {
	if dialect == analytics.DialectPostgres {
		return "SELECT ticket_type AS ticket_type, COUNT(*) AS tickets FROM ticket_results WHERE created_at >= $1 GROUP BY ticket_type ORDER BY tickets DESC LIMIT $2"
	}
	return "SELECT ticket_type AS ticket_type, COUNT(*) AS tickets FROM ticket_results WHERE created_at >= ? GROUP BY ticket_type ORDER BY tickets DESC LIMIT ?"
}

func TestAnalyticsRepository_ExecuteSelect_SQLite(t *testing.T) {
	t.Run("returns rows in column order", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectSQLite))).
			WithArgs("2026-02-13T12:00:00Z", 100).
			WillReturnRows(sqlmock.NewRows([]string{"ticket_type", "tickets"}).
				AddRow([]byte("complaint"), int64(5)).
				AddRow("consultation", int64(2)))

		repo := NewAnalyticsRepository(db, analytics.DialectSQLite, logger.NewMockLogger(t))
		rows, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, time.Second)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		assert.Equal(t, []string{"ticket_type", "tickets"}, rows[0].Columns())
		v, _ := rows[0].Get("ticket_type")
		assert.Equal(t, "complaint", v, "byte slices are converted to strings")
		v, _ = rows[1].Get("tickets")
		assert.Equal(t, int64(2), v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result is not nil", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectSQLite))).
			WillReturnRows(sqlmock.NewRows([]string{"ticket_type", "tickets"}))

		repo := NewAnalyticsRepository(db, analytics.DialectSQLite, logger.NewMockLogger(t))
		rows, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, time.Second)
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("missing parameter fails before execution", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		log := logger.NewTestLogger(t)
		repo := NewAnalyticsRepository(db, analytics.DialectSQLite, log)
		_, err := repo.ExecuteSelect(context.Background(), distributionSQL, map[string]interface{}{"limit": 1}, time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to bind parameters")
		assert.Equal(t, "", analytics.ErrorCode(err))

		_, logged := log.Find("Failed to bind analytics query parameters")
		assert.True(t, logged)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deadline yields sql_timeout", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectSQLite))).
			WillDelayFor(time.Second).
			WillReturnRows(sqlmock.NewRows([]string{"ticket_type", "tickets"}))

		log := logger.NewTestLogger(t)
		repo := NewAnalyticsRepository(db, analytics.DialectSQLite, log)
		_, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, 50*time.Millisecond)
		require.Error(t, err)

		analyticsErr, ok := analytics.AsError(err)
		require.True(t, ok)
		assert.Equal(t, analytics.CodeSQLTimeout, analyticsErr.Code)
		assert.Equal(t, "Analytics query timed out", analyticsErr.Message)
		assert.Equal(t, "Reduce date range or remove extra dimensions", analyticsErr.Hint)

		entry, logged := log.Find("Analytics query timed out")
		require.True(t, logged)
		assert.Equal(t, "WARN", entry.Level)
	})

	t.Run("caller cancellation is not a timeout", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectSQLite))).
			WillDelayFor(time.Second).
			WillReturnRows(sqlmock.NewRows([]string{"ticket_type", "tickets"}))

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		repo := NewAnalyticsRepository(db, analytics.DialectSQLite, logger.NewMockLogger(t))
		_, err := repo.ExecuteSelect(ctx, distributionSQL, distributionParams, 5*time.Second)
		require.Error(t, err)
		assert.NotEqual(t, analytics.CodeSQLTimeout, analytics.ErrorCode(err))
		assert.Contains(t, err.Error(), "failed to execute query")
	})

	t.Run("driver error is wrapped", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectSQLite))).
			WillReturnError(errors.New("no such table: ticket_results"))

		repo := NewAnalyticsRepository(db, analytics.DialectSQLite, logger.NewMockLogger(t))
		_, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute query: no such table")
	})
}

func TestAnalyticsRepository_ExecuteSelect_Postgres(t *testing.T) {
	t.Run("runs in a read-only transaction with a statement timeout", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout = 1500")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectPostgres))).
			WithArgs("2026-02-13T12:00:00Z", 100).
			WillReturnRows(sqlmock.NewRows([]string{"ticket_type", "tickets"}).
				AddRow("complaint", int64(9)))
		mock.ExpectRollback()

		repo := NewAnalyticsRepository(db, analytics.DialectPostgres, logger.NewMockLogger(t))
		rows, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, 1500*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		v, _ := rows[0].Get("tickets")
		assert.Equal(t, int64(9), v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query canceled by the server yields sql_timeout", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectPostgres))).
			WillReturnError(&pq.Error{Code: "57014", Message: "canceling statement due to statement timeout"})
		mock.ExpectRollback()

		repo := NewAnalyticsRepository(db, analytics.DialectPostgres, logger.NewMockLogger(t))
		_, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, time.Second)
		assert.Equal(t, analytics.CodeSQLTimeout, analytics.ErrorCode(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("client deadline yields sql_timeout", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec("SET LOCAL statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(boundSQL(analytics.DialectPostgres))).
			WillDelayFor(time.Second).
			WillReturnRows(sqlmock.NewRows([]string{"ticket_type", "tickets"}))

		repo := NewAnalyticsRepository(db, analytics.DialectPostgres, logger.NewMockLogger(t))
		_, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, 50*time.Millisecond)
		assert.Equal(t, analytics.CodeSQLTimeout, analytics.ErrorCode(err))
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock, cleanup := testutil.SetupMockDB(t)
		defer cleanup()

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		repo := NewAnalyticsRepository(db, analytics.DialectPostgres, logger.NewMockLogger(t))
		_, err := repo.ExecuteSelect(context.Background(), distributionSQL, distributionParams, time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to begin transaction")
	})
}

func TestAnalyticsRepository_SQLiteIntegration(t *testing.T) {
	db := testutil.SetupSQLiteDB(t)
	testutil.SeedTickets(t, db,
		testutil.Ticket{ExternalID: "T-1", CreatedAt: "2026-03-01T10:00:00Z", TicketType: "complaint", City: "Astana", Language: "ru"},
		testutil.Ticket{ExternalID: "T-2", CreatedAt: "2026-03-02T10:00:00Z", TicketType: "complaint", City: "Almaty", Language: "kk"},
		testutil.Ticket{ExternalID: "T-3", CreatedAt: "2026-03-03T10:00:00Z", TicketType: "consultation", Language: "ru"},
		testutil.Ticket{ExternalID: "T-4", CreatedAt: "2025-12-01T10:00:00Z", TicketType: "complaint", Language: "ru"},
	)

	resolver, err := analytics.NewFieldResolver(analytics.DialectSQLite)
	require.NoError(t, err)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	compiler := analytics.NewCompiler(resolver, 30, 500, analytics.WithClock(clockwork.NewFakeClockAt(now)))

	repo := NewAnalyticsRepository(db, analytics.DialectSQLite, logger.NewMockLogger(t))

	t.Run("distribution by type within the default window", func(t *testing.T) {
		dsl := analytics.NewDSL()
		dsl.Dimensions = []string{"ticket_type"}

		compiled, err := compiler.Compile(dsl)
		require.NoError(t, err)
		require.NoError(t, analytics.ValidateSQL(compiled.SQL))

		rows, err := repo.ExecuteSelect(context.Background(), compiled.SQL, compiled.Params, time.Second)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		v, _ := rows[0].Get("ticket_type")
		assert.Equal(t, "complaint", v)
		v, _ = rows[0].Get("tickets")
		assert.Equal(t, int64(2), v)
	})

	t.Run("city falls back to unknown", func(t *testing.T) {
		dsl := analytics.NewDSL()
		dsl.Dimensions = []string{"city"}
		dsl.Filters = []analytics.Filter{
			{Field: "language", Op: analytics.OpIn, Value: analytics.ListValue("ru")},
		}

		compiled, err := compiler.Compile(dsl)
		require.NoError(t, err)

		rows, err := repo.ExecuteSelect(context.Background(), compiled.SQL, compiled.Params, time.Second)
		require.NoError(t, err)

		cities := map[interface{}]interface{}{}
		for _, row := range rows {
			city, _ := row.Get("city")
			tickets, _ := row.Get("tickets")
			cities[city] = tickets
		}
		assert.Equal(t, map[interface{}]interface{}{"Astana": int64(1), "unknown": int64(1)}, cities)
	})
}
