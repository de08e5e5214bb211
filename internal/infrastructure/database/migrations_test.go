package database_test

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/lumen-hub/lumen-core/migrations"

	"github.com/lumen-hub/lumen-core/internal/infrastructure/database"
)

// openTempDB opens a database in a per-test directory.
func openTempDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "migrate-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("Close() error = %v", closeErr)
		}
	})
	return db
}

// tableExists reports whether a table is present in the schema.
func tableExists(t *testing.T, db *database.DB, name string) bool {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n > 0
}

func TestMigrate_AppliesEmbeddedSchema(t *testing.T) {
	db := openTempDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"disabled_device_types", "device_events"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %q missing after Migrate()", table)
		}
	}

	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error = %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("AppliedVersions() is empty after Migrate()")
	}
	if versions[0] != "20260210_120000" {
		t.Errorf("AppliedVersions()[0] = %q, want %q", versions[0], "20260210_120000")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTempDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	first, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error = %v", err)
	}

	// A second run must skip everything already applied.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}
	second, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error = %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("applied count after rerun = %d, want %d", len(second), len(first))
	}
}

func TestMigrateDown_RollsBackLatest(t *testing.T) {
	db := openTempDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "disabled_device_types") {
		t.Error("disabled_device_types still present after MigrateDown()")
	}

	versions, err := db.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error = %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("AppliedVersions() after rollback = %v, want empty", versions)
	}

	// Rolling back an empty history is a no-op.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v, want nil", err)
	}
}
