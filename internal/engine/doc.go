// Package engine implements the local-first sync engine.
//
// The engine owns one in-memory record slice per collection and exposes the
// same Put / Remove / RemoveWhere API whether it is backed by the local store
// alone or by a remote collection store.
//
// MODES:
//
// Local mode (no remote configured, or configuration failed):
// Mutations update memory and persist the whole collection before returning.
// Listeners are not notified; the caller already knows what changed.
//
// Remote mode:
// Mutations are appended to the durable outbox and return immediately.
// Memory is NOT updated by the mutation itself. It changes only when the
// remote store delivers a snapshot, which it does for the writer too. Callers
// must not assume their own write is visible when Put returns.
//
// SNAPSHOTS:
//
// Every update replaces a collection's slice wholesale. Readers holding a
// previous slice keep a consistent, if stale, view; slices and the records in
// them are never modified after publication.
//
// LOOPS:
//
// Run drives two loops under one errgroup:
//   - dispatch: delivers queued Change notifications to listeners, one at a time
//   - outbox: delivers queued remote writes in FIFO order, retrying with
//     exponential backoff and dead-lettering after the configured attempts
//
// A dead-lettered write surfaces as a ChangeWriteFailed notification. That is
// the only way a remote write failure becomes visible; Put never reports it.
package engine
