package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/siteinsight/internal/config"
	"github.com/xxxsen/siteinsight/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_DSN and applies the
// migrations. Tests are skipped when the variable is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{DSN: dsn})
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
