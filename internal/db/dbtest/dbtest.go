package dbtest

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/db"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OpenTestDB connects to the postgres named by TEST_DB_* and applies the
// migrations. The test is skipped when TEST_DB_HOST is not set.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     envOr("TEST_DB_USER", "mrag"),
		Password: envOr("TEST_DB_PASSWORD", "mrag_pass"),
		DBName:   envOr("TEST_DB_NAME", "mrag_test"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
