package policy

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteRepository implements Repository using SQLite.
//
// Schema: migrations/20260210_120000_initial_schema.up.sql
// (disabled_device_types table).
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite policy repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns all disabled device types.
func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT device_type FROM disabled_device_types ORDER BY device_type`)
	if err != nil {
		return nil, fmt.Errorf("querying disabled device types: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor cleanup

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning device type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device types: %w", err)
	}
	return types, nil
}

// Add marks a device type as disabled. Idempotent.
func (r *SQLiteRepository) Add(ctx context.Context, deviceType string) error {
	if deviceType == "" {
		return ErrEmptyType
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO disabled_device_types (device_type, disabled_at)
		 VALUES (?, ?)
		 ON CONFLICT(device_type) DO NOTHING`,
		deviceType, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("disabling device type %q: %w", deviceType, err)
	}
	return nil
}

// Remove re-enables a device type.
func (r *SQLiteRepository) Remove(ctx context.Context, deviceType string) error {
	if deviceType == "" {
		return ErrEmptyType
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM disabled_device_types WHERE device_type = ?`, deviceType)
	if err != nil {
		return fmt.Errorf("enabling device type %q: %w", deviceType, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking enable result: %w", err)
	}
	if affected == 0 {
		return ErrNotDisabled
	}
	return nil
}
