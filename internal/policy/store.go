package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Repository persists the disabled-device-type set.
type Repository interface {
	// List returns all disabled device types.
	List(ctx context.Context) ([]string, error)

	// Add marks a device type as disabled. Adding an already-disabled
	// type is a no-op.
	Add(ctx context.Context, deviceType string) error

	// Remove re-enables a device type. Returns ErrNotDisabled if the
	// type was not disabled.
	Remove(ctx context.Context, deviceType string) error
}

// Store is the in-memory view of the disabled-device-type set, backed by a
// Repository. Disabled is designed for the dispatch hot path: a read-locked
// map lookup, no I/O.
//
// All public methods are thread-safe.
type Store struct {
	repo   Repository
	logger Logger

	mu       sync.RWMutex
	disabled map[string]struct{}
}

// NewStore creates a policy store over repo. Call RefreshCache before use.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:     repo,
		logger:   noopLogger{},
		disabled: make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// RefreshCache reloads the disabled set from the repository.
// This should be called on application startup.
func (s *Store) RefreshCache(ctx context.Context) error {
	types, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading disabled device types: %w", err)
	}

	s.mu.Lock()
	s.disabled = make(map[string]struct{}, len(types))
	for _, t := range types {
		s.disabled[t] = struct{}{}
	}
	s.mu.Unlock()

	s.logger.Info("disabled-device policy loaded", "count", len(types))
	return nil
}

// Disabled reports whether a device type is currently disabled.
func (s *Store) Disabled(deviceType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.disabled[deviceType]
	return ok
}

// Disable marks a device type as disabled, persisting the change.
// The next dispatch will shut the affected devices down.
func (s *Store) Disable(ctx context.Context, deviceType string) error {
	deviceType = strings.TrimSpace(deviceType)
	if deviceType == "" {
		return ErrEmptyType
	}

	if err := s.repo.Add(ctx, deviceType); err != nil {
		return err
	}

	s.mu.Lock()
	s.disabled[deviceType] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("device type disabled", "type", deviceType)
	return nil
}

// Enable removes a device type from the disabled set, persisting the
// change. Returns ErrNotDisabled if the type was not disabled.
func (s *Store) Enable(ctx context.Context, deviceType string) error {
	deviceType = strings.TrimSpace(deviceType)
	if deviceType == "" {
		return ErrEmptyType
	}

	if err := s.repo.Remove(ctx, deviceType); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.disabled, deviceType)
	s.mu.Unlock()

	s.logger.Info("device type enabled", "type", deviceType)
	return nil
}

// ListDisabled returns a sorted snapshot of the disabled set.
func (s *Store) ListDisabled() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.disabled))
	for t := range s.disabled {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}
