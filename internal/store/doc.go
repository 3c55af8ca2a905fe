// Package store caches the last good inbox state on disk.
//
// The cache is a fallback, not a source of truth: the conversation store
// writes every successful load and history fetch here, and reads it back only
// when the backend cannot be reached. Data is partitioned by viewer id so
// two accounts on one machine never see each other's messages.
//
// # Implementations
//
//   - SQLiteStore: modernc.org/sqlite, WAL mode, schema created on open and
//     older files upgraded by idempotent column migrations.
//   - MemoryStore: in-memory, used in tests and when caching is disabled.
//
// # Tables
//
//	snapshots      one row per viewer: unread total, saved_at
//	conversations  ordered list per viewer, cascades from snapshots
//	messages       upserted by (viewer, id); read never reverts to unread
package store
