package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ticketpulse/ticketpulse/internal/domain"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
	"github.com/ticketpulse/ticketpulse/pkg/logger"
)

// pqQueryCanceled is the SQLSTATE raised when statement_timeout fires
const pqQueryCanceled = "57014"

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type analyticsRepository struct {
	db      *sql.DB
	dialect analytics.Dialect
	logger  logger.Logger
}

// NewAnalyticsRepository creates the bounded executor for the analytics table
func NewAnalyticsRepository(db *sql.DB, dialect analytics.Dialect, logger logger.Logger) domain.AnalyticsRepository {
	return &analyticsRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

// ExecuteSelect binds the named parameters and runs the statement with a
// deadline. The deadline is passed to the driver so the statement is aborted
// rather than abandoned.
func (r *analyticsRepository) ExecuteSelect(ctx context.Context, query string, params map[string]interface{}, timeout time.Duration) ([]analytics.Row, error) {
	bound, args, err := analytics.BindNamed(query, params, r.dialect.PlaceholderFormat())
	if err != nil {
		r.logger.WithField("sql", query).WithField("error", err.Error()).Error("Failed to bind analytics query parameters")
		return nil, fmt.Errorf("failed to bind parameters: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rows []analytics.Row
	if r.dialect == analytics.DialectPostgres {
		rows, err = r.queryReadOnly(queryCtx, bound, args, timeout)
	} else {
		rows, err = scanRows(queryCtx, r.db, bound, args)
	}

	if err != nil {
		if isTimeout(ctx, queryCtx, err) {
			r.logger.WithField("sql", query).WithField("timeout", timeout.String()).Warn("Analytics query timed out")
			return nil, analytics.NewError(analytics.CodeSQLTimeout,
				"Analytics query timed out",
				"Reduce date range or remove extra dimensions")
		}
		r.logger.WithField("sql", query).WithField("error", err.Error()).Error("Failed to execute analytics query")
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	r.logger.WithField("rows", len(rows)).Debug("Analytics query executed successfully")

	return rows, nil
}

// queryReadOnly runs the statement in a read-only transaction with a
// server-side statement timeout matching the client deadline
func (r *analyticsRepository) queryReadOnly(ctx context.Context, query string, args []interface{}, timeout time.Duration) ([]analytics.Row, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", max(1, timeout.Milliseconds()))); err != nil {
		return nil, fmt.Errorf("failed to set statement timeout: %w", err)
	}

	return scanRows(ctx, tx, query, args)
}

func scanRows(ctx context.Context, q queryer, query string, args []interface{}) ([]analytics.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := make([]analytics.Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, val := range values {
			// Drivers return text columns as []byte
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, analytics.NewRow(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// isTimeout reports whether err comes from the executor deadline rather than
// from the caller cancelling its own context
func isTimeout(parent, queryCtx context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqQueryCanceled
}
