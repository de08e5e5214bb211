// Package policy manages the disabled-device-type set.
//
// The set is the one piece of externally supplied state the coordination
// core consults: a device whose type appears in the set is never
// initialized, and an already-initialized device whose type is disabled at
// runtime is shut down on the next dispatch.
//
// The Store keeps the set in memory behind a read lock so the hot path
// (one lookup per device per frame) never touches the database; mutations
// write through to SQLite and update the cache, so a policy change takes
// effect on the very next dispatch.
//
// # Usage
//
//	repo := policy.NewSQLiteRepository(db.DB)
//	store := policy.NewStore(repo)
//	store.SetLogger(log)
//	if err := store.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	store.Disabled("wled")          // hot-path query
//	store.Disable(ctx, "wled")      // runtime policy change
package policy
