// Package history records device lifecycle events for operational queries.
//
// The coordination core emits events (initialization outcomes, shutdowns,
// policy-triggered shutdowns) through a fire-and-forget sink; this package
// persists them to SQLite and answers the API's history queries. Recording
// failures are logged and swallowed — the core never blocks or fails on the
// event trail.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200

	// recordTimeout bounds the fire-and-forget insert issued by the sink.
	recordTimeout = 5 * time.Second
)

// Event is one recorded device lifecycle event.
type Event struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"`
	Event      string    `json:"event"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Repository persists and queries device events.
type Repository interface {
	Record(ctx context.Context, e Event) error
	ListRecent(ctx context.Context, deviceName string, limit int) ([]Event, error)
}

// SQLiteRepository implements Repository using SQLite.
//
// Schema: migrations/20260210_120000_initial_schema.up.sql
// (device_events table).
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite event repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one event. A missing ID or timestamp is filled in.
func (r *SQLiteRepository) Record(ctx context.Context, e Event) error {
	if e.DeviceName == "" {
		return fmt.Errorf("history: device name is required")
	}
	if e.Event == "" {
		return fmt.Errorf("history: event kind is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_events (id, device_name, event, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.DeviceName, e.Event, e.Detail, e.OccurredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording device event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, optionally filtered by device name.
// limit is clamped to [1, 200]; zero means the default of 50.
func (r *SQLiteRepository) ListRecent(ctx context.Context, deviceName string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	query := `SELECT id, device_name, event, detail, occurred_at
	          FROM device_events`
	args := []any{}
	if deviceName != "" {
		query += ` WHERE device_name = ?`
		args = append(args, deviceName)
	}
	query += ` ORDER BY occurred_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying device events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor cleanup

	var events []Event
	for rows.Next() {
		var e Event
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.DeviceName, &e.Event, &e.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning device event: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp: %w", err)
		}
		e.OccurredAt = t
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device events: %w", err)
	}
	return events, nil
}

// Recorder adapts a Repository to the coordination core's fire-and-forget
// event sink. Persistence failures are logged, never propagated.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a Recorder over repo.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Record implements the core's EventSink.
func (r *Recorder) Record(deviceName, event, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Record(ctx, Event{
		DeviceName: deviceName,
		Event:      event,
		Detail:     detail,
	}); err != nil {
		r.logger.Warn("device event write failed",
			"device", deviceName,
			"event", event,
			"error", err,
		)
	}
}
