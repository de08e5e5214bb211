// Package device implements the concurrency-coordination core of Lumen.
//
// It drives an arbitrary, heterogeneous set of lighting output devices with
// a continuous stream of frames while guaranteeing that no device ever
// receives two concurrent update calls, that stale frames are coalesced
// rather than queued, and that devices which failed to come online are
// recovered through bounded, interval-spaced retries that never block the
// rest of the system.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                            Manager                                 │
//	│                                                                    │
//	│  UpdateDevices(frame) ──► per-handle dispatch (policy re-check)    │
//	│  Initialize()         ──► one-shot pass ──► bounded retry loop     │
//	│                                                                    │
//	│  ┌─────────────┐   ┌─────────────┐   ┌─────────────┐              │
//	│  │   Handle    │   │   Handle    │   │   Handle    │   ...        │
//	│  │ driver +    │   │ driver +    │   │ driver +    │              │
//	│  │ coalescer   │   │ coalescer   │   │ coalescer   │              │
//	│  └──────┬──────┘   └──────┬──────┘   └──────┬──────┘              │
//	│         │ worker          │ worker          │ worker              │
//	└─────────┼─────────────────┼─────────────────┼─────────────────────┘
//	          ▼                 ▼                 ▼
//	     driver.Update     driver.Update     driver.Update
//
// Each handle pairs exactly one driver with one coalescer. A coalescer owns
// a single-slot pending mailbox: submitting a frame overwrites any
// unconsumed one and cancels the context of the update call currently in
// flight, so a burst of submissions converges on the newest frame with at
// most one superseded call still draining.
//
// # Failure model
//
// Nothing in this package surfaces a hard failure to its caller.
// Initialization failures are logged, counted, and drive retry scheduling;
// update faults (including panics in a driver) are contained inside the
// owning worker iteration; retry exhaustion is silent and observable only
// through RemainingRetryAttempts. Callers observe state through queries and
// the devices-changed notification, never through errors from control
// operations.
//
// # Thread safety
//
// All exported methods are safe for concurrent use. The handle list is
// immutable after construction, so dispatch iterates without locking; the
// only shared mutable state is each coalescer's mailbox and the manager's
// retry bookkeeping, both guarded by short-held mutexes that are never held
// across a device call.
package device
