// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : User account persistence with username-based lookups
//   - [ConnectionRepository] : Provider credential storage with per-user upserts
//   - [JobRepository] : Import job persistence with guarded status transitions
//   - [ItemRepository] : Per-track import state, listed in playlist order
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, job #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
