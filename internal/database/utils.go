package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ticketpulse/ticketpulse/config"
)

// GetConnectionPoolSettings returns connection pool settings based on environment
func GetConnectionPoolSettings(driver, environment string) (maxOpen, maxIdle int, maxLifetime time.Duration) {
	// SQLite serializes writers, a small pool is enough for reads
	if driver == "sqlite3" {
		return 4, 4, 30 * time.Minute
	}

	// Use smaller pools for test environment to conserve connections
	if environment == "test" || environment == "development" {
		return 10, 5, 2 * time.Minute
	}

	// Production settings
	return 25, 25, 20 * time.Minute
}

// GetPostgresDSN returns the DSN for the analytics database
func GetPostgresDSN(cfg *config.DatabaseConfig) string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return dsn.String()
}

// GetSQLiteDSN returns the DSN for a SQLite database file
func GetSQLiteDSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000", cfg.Path)
}

// GetDSN returns the DSN matching the configured driver
func GetDSN(cfg *config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "postgres":
		return GetPostgresDSN(cfg), nil
	case "sqlite3":
		return GetSQLiteDSN(cfg), nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Open connects with driverName, which may be a tracing wrapper of the
// configured driver, and applies the pool settings
func Open(driverName string, cfg *config.DatabaseConfig, environment string) (*sql.DB, error) {
	dsn, err := GetDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	maxOpen, maxIdle, maxLifetime := GetConnectionPoolSettings(cfg.Driver, environment)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	db.SetConnMaxIdleTime(maxLifetime / 2)

	return db, nil
}
