package device

import "errors"

// Domain errors for the device package.
//
// Control operations on the Manager never return errors to callers; these
// sentinels surface only through logs and the telemetry recorder, and can be
// matched with errors.Is() where update faults are inspected.
var (
	// ErrClosed is returned by internal paths when the manager has been
	// closed and no further device work is accepted.
	ErrClosed = errors.New("device: manager closed")

	// ErrUpdatePanic wraps a panic recovered from a driver's Update call.
	ErrUpdatePanic = errors.New("device: driver update panicked")
)
