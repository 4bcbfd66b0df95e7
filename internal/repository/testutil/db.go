package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ticketpulse/ticketpulse/config"
	"github.com/ticketpulse/ticketpulse/internal/database"
	"github.com/ticketpulse/ticketpulse/pkg/analytics"
)

// Ticket is a ticket_results row used to seed test databases
type Ticket struct {
	ExternalID string
	CreatedAt  string
	TicketType string
	Sentiment  string
	Segment    string
	Language   string
	Priority   int
	OfficeID   int
	ManagerID  int
	City       string
}

// SetupMockDB creates a mock database connection for testing
func SetupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return db, mock, cleanup
}

// SetupSQLiteDB opens a file-backed SQLite database with the analytics
// schema. The test is skipped when the driver is unavailable.
func SetupSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite3",
		Path:   filepath.Join(t.TempDir(), "tickets.db"),
	}

	db, err := database.Open("sqlite3", cfg, "test")
	if err != nil {
		t.Skipf("sqlite3 unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.InitializeDatabase(context.Background(), db, analytics.DialectSQLite))

	return db
}

// SeedTickets inserts tickets into ticket_results
func SeedTickets(t *testing.T, db *sql.DB, tickets ...Ticket) {
	t.Helper()

	for _, ticket := range tickets {
		payload, err := json.Marshal(map[string]string{"city": ticket.City})
		require.NoError(t, err)

		_, err = db.Exec(`INSERT INTO ticket_results
			(external_ticket_id, created_at, ticket_type, sentiment, segment, language, priority, office_id, manager_id, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ticket.ExternalID, ticket.CreatedAt, ticket.TicketType, ticket.Sentiment, ticket.Segment,
			ticket.Language, ticket.Priority, ticket.OfficeID, ticket.ManagerID, string(payload))
		require.NoError(t, err)
	}
}
