// Package integration contains integration tests for the position-taking bot.
//
// These tests verify the correct interaction between components:
// - API tests: full HTTP request cycle against a wired router
// - WebSocket tests: connection, broadcast messaging
// - Database tests: schema, repository round-trips
//
// Tests require a reachable PostgreSQL instance (TEST_DB_* env vars)
// and skip themselves when the database is unavailable.
package integration

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
)

// TestConfig contains configuration for integration tests
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// getTestConfig returns configuration from environment variables or defaults
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "kalshibot_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB creates a test database connection
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	config := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName, config.DBSSLMode,
	)

	db, err := sql.Open(config.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// CreateTestSchema creates all tables needed by the bot
func CreateTestSchema(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS contracts (
			id SERIAL PRIMARY KEY,
			market_id TEXT NOT NULL UNIQUE,
			question TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			yes_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			liquidity DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume DOUBLE PRECISION NOT NULL DEFAULT 0,
			end_date TIMESTAMPTZ,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolution TEXT,
			resolved_at TIMESTAMPTZ,
			discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id SERIAL PRIMARY KEY,
			market_id TEXT NOT NULL,
			question TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL,
			entry_odds DOUBLE PRECISION NOT NULL,
			contracts_purchased DOUBLE PRECISION NOT NULL,
			position_size DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			pnl DOUBLE PRECISION,
			exit_odds DOUBLE PRECISION,
			exchange_order_id TEXT,
			ai_reasoning TEXT NOT NULL DEFAULT '',
			ai_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_factors TEXT[] DEFAULT '{}',
			dry_run BOOLEAN NOT NULL DEFAULT FALSE,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS ai_decisions (
			id SERIAL PRIMARY KEY,
			market_id TEXT NOT NULL,
			question TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL DEFAULT '',
			allocation DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			reasoning TEXT NOT NULL DEFAULT '',
			risk_factors TEXT[] DEFAULT '{}',
			strategy_notes TEXT NOT NULL DEFAULT '',
			outcome TEXT,
			resolution_source TEXT NOT NULL DEFAULT '',
			decided_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS performance_metrics (
			id SERIAL PRIMARY KEY,
			bankroll DOUBLE PRECISION NOT NULL,
			daily_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_trades INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS stop_loss_events (
			id SERIAL PRIMARY KEY,
			trade_id INTEGER NOT NULL,
			market_id TEXT NOT NULL,
			entry_odds DOUBLE PRECISION NOT NULL,
			exit_odds DOUBLE PRECISION NOT NULL,
			loss_amount DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			triggered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS monthly_analysis (
			id SERIAL PRIMARY KEY,
			month TEXT NOT NULL UNIQUE,
			trades INTEGER NOT NULL DEFAULT 0,
			wins INTEGER NOT NULL DEFAULT 0,
			losses INTEGER NOT NULL DEFAULT 0,
			win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			roi DOUBLE PRECISION NOT NULL DEFAULT 0,
			best_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			worst_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
}

// TruncateTables clears all bot tables between tests
func TruncateTables(t *testing.T, db *sql.DB) {
	t.Helper()

	tables := []string{
		"contracts",
		"trades",
		"ai_decisions",
		"performance_metrics",
		"stop_loss_events",
		"monthly_analysis",
	}
	for _, table := range tables {
		if _, err := db.Exec("TRUNCATE TABLE " + table + " RESTART IDENTITY CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
