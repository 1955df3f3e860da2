// Package store provides SQLite-backed local persistence for fishsync.
//
// The store holds three kinds of state:
//   - Collections: one JSON array per collection key, replaced wholesale on save
//   - Settings: small key/value pairs such as the saved remote credential
//   - Outbox: remote writes queued for delivery, drained in FIFO order
//
// Loading a collection never fails. A missing key, an unreadable row or a
// payload that is not a JSON array all load as an empty collection, and the
// problem is logged. A corrupted local store is "no data", not a crash.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
