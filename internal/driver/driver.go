// Package driver defines the device capability consumed by the Lumen core.
//
// A Driver is the boundary between the coordination core and whatever
// actually writes bytes to lighting hardware: a vendor SDK binding, a
// network sink, or the virtual driver used in development. The core treats
// every driver uniformly through this interface and never inspects frame
// contents — it only cares about frame recency.
//
// # Contract
//
//   - Initialize must be idempotent: calling it on an already-initialized
//     driver is a no-op returning nil. It should not block indefinitely.
//   - Update may observe ctx cancellation cooperatively; the core cancels
//     the context of an in-flight call when a newer frame supersedes it.
//   - Shutdown and Reset are best-effort and only meaningful while the
//     driver is initialized.
//   - All methods may be called from different goroutines, but the core
//     guarantees Update is never invoked concurrently for one driver.
package driver

import "context"

// RGB is a single zone color. Drivers interpret zones in their own order.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Frame is one lighting snapshot: the color of every zone a renderer
// produced. The coordination core treats it as opaque payload.
type Frame struct {
	Colors []RGB `json:"colors"`
}

// Variable describes a user-configurable setting a driver wants registered
// with the surrounding configuration system. The core only aggregates these
// for callers; it never interprets them.
type Variable struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Default any    `json:"default,omitempty"`
}

// Driver is the device capability set.
type Driver interface {
	// Initialize brings the device online. Idempotent; a failure is
	// reported as an error and is non-fatal to the caller.
	Initialize(ctx context.Context) error

	// IsInitialized reports whether the device is currently online.
	IsInitialized() bool

	// Shutdown tears down the device connection. Safe to call once per
	// initialized session.
	Shutdown(ctx context.Context) error

	// Reset clears hardware state without tearing down the connection.
	Reset(ctx context.Context) error

	// Update applies a frame. When forced is true the driver must apply
	// the frame even if it would otherwise elide a redundant update.
	// The driver may poll ctx and abandon the write when cancelled.
	Update(ctx context.Context, frame Frame, forced bool) error

	// Type identifies the device kind (e.g. "virtual", "wled", "openrgb").
	// The disabled-device policy operates on this identity.
	Type() string

	// Name returns a short human-readable device name.
	Name() string

	// Details returns a human-readable description for diagnostics.
	Details() string

	// Variables returns the user-configurable variables this driver
	// registers with the configuration system.
	Variables() []Variable
}
