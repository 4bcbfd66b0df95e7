// Package schema defines the analytics store schema for development.
//
// DEVELOPMENT USE ONLY
// The ticket_results table is owned by the ingestion pipeline. These
// definitions bootstrap a local store with the columns the analytics
// compiler reads.
package schema

import "github.com/ticketpulse/ticketpulse/pkg/analytics"

// TableDefinitions contains the statements creating the analytics table per dialect
var TableDefinitions = map[analytics.Dialect][]string{
	analytics.DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS ticket_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_ticket_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			ticket_type TEXT,
			sentiment TEXT,
			segment TEXT,
			language TEXT,
			priority INTEGER,
			office_id INTEGER,
			manager_id INTEGER,
			payload TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_results_created_at ON ticket_results (created_at)`,
	},
	analytics.DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS ticket_results (
			id BIGSERIAL PRIMARY KEY,
			external_ticket_id VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			ticket_type VARCHAR(64),
			sentiment VARCHAR(32),
			segment VARCHAR(64),
			language VARCHAR(16),
			priority INTEGER,
			office_id INTEGER,
			manager_id INTEGER,
			payload JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_results_created_at ON ticket_results (created_at)`,
	},
}
