package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ticketpulse/ticketpulse/internal/database/schema"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
)

// InitializeDatabase creates the analytics table if it doesn't exist
func InitializeDatabase(ctx context.Context, db *sql.DB, dialect analytics.Dialect) error {
	queries, ok := schema.TableDefinitions[dialect]
	if !ok {
		return fmt.Errorf("no schema for dialect: %s", dialect)
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}
