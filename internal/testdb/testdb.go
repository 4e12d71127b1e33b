// Package testdb provides an in-memory sqlite database for package tests so
// they run without a Postgres instance.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"complaint-service/internal/account"
	"complaint-service/internal/complaint"
	"complaint-service/internal/db"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

// New opens a fresh in-memory database with the service schema applied.
// Each call gets its own database, keyed by the test name.
func New(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// A single connection keeps the shared-cache memory database alive for
	// the whole test.
	sqldb.SetMaxOpenConns(1)

	bundb := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bundb.Close() })

	ctx := context.Background()
	if _, err := bundb.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := db.RunMigrations(ctx, bundb,
		(*account.Account)(nil),
		(*account.Profile)(nil),
		(*complaint.Complaint)(nil),
	); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return bundb
}

// CleanupTables empties the given tables between subtests.
func CleanupTables(t *testing.T, bundb *bun.DB, tables ...string) {
	t.Helper()
	ctx := context.Background()
	for _, table := range tables {
		if _, err := bundb.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("failed to clean table %s: %v", table, err)
		}
	}
}
