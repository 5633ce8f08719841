// Package store provides SQLite-backed durable storage for route history.
//
// The store is an append-only log with:
//   - Routes: one summary per bound route per PET
//   - Runs: one record per Run call, linked to its route
//
// # Ordering
//
// All ordering uses the seq column (a logical clock supplied by the
// writer), never timestamps, so two replays of the same scenario read back
// identical rows. Every query ends in ORDER BY seq ASC, id ASC COLLATE
// BINARY (or the integer id for runs).
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
