package database_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumen-hub/lumen-core/internal/infrastructure/database"
)

func TestOpen_CreatesFileAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "lumen.db")

	db, err := database.Open(database.Config{Path: path, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}

	// The ping during Open forces file creation.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestOpen_WALMode(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "wal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTempDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestExecAndQuery(t *testing.T) {
	db := openTempDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE frames_seen (device TEXT PRIMARY KEY, n INTEGER NOT NULL) STRICT`,
	); err != nil {
		t.Fatalf("ExecContext() create error = %v", err)
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO frames_seen (device, n) VALUES (?, ?)`, "desk", 42)
	if err != nil {
		t.Fatalf("ExecContext() insert error = %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		t.Fatalf("RowsAffected() error = %v", err)
	}
	if affected != 1 {
		t.Errorf("RowsAffected() = %d, want 1", affected)
	}

	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT n FROM frames_seen WHERE device = ?`, "desk").Scan(&n); err != nil {
		t.Fatalf("QueryRowContext() error = %v", err)
	}
	if n != 42 {
		t.Errorf("n = %d, want 42", n)
	}
}

func TestBeginTx_RollbackDiscardsChanges(t *testing.T) {
	db := openTempDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE frames_seen (device TEXT PRIMARY KEY, n INTEGER NOT NULL) STRICT`,
	); err != nil {
		t.Fatalf("ExecContext() create error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO frames_seen (device, n) VALUES (?, ?)`, "desk", 1); err != nil {
		t.Fatalf("tx insert error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames_seen`).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 0 {
		t.Errorf("rows after rollback = %d, want 0", count)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "close.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// database/sql tolerates closing twice.
	if err := db.Close(); err != nil {
		t.Errorf("Close() second call error = %v", err)
	}
}
