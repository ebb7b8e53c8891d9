package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oscardcstudio-cell/auto-polymarket/internal/config"
)

// SetupTestDB connects to the database named by AUTO_POLY_TEST_DB_HOST and
// friends, skipping the test when no test database is configured.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	host := os.Getenv("AUTO_POLY_TEST_DB_HOST")
	if host == "" {
		t.Skip("integration test: set AUTO_POLY_TEST_DB_HOST to run")
	}

	cfg := &config.DatabaseConfig{
		Host:               host,
		Port:               5432,
		Name:               envOr("AUTO_POLY_TEST_DB_NAME", "auto_polymarket_test"),
		User:               envOr("AUTO_POLY_TEST_DB_USER", "postgres"),
		Password:           envOr("AUTO_POLY_TEST_DB_PASSWORD", "postgres"),
		SSLMode:            "disable",
		MaxConnections:     4,
		MaxIdleConnections: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDB(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

// TeardownTestDB closes the test connection.
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()
	db.Close()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
