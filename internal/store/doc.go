// Package store provides SQLite-backed durable storage for posted
// comments.
//
// The event server keeps its live message list in memory; the store is
// the copy that survives a restart. Deletes are tombstones rather than
// row removals, so recovery can tell a deleted message from one that was
// never seen and never resurrects it.
//
// # Recovery Ordering
//
// Recover returns the newest live messages by ts, oldest first, with
// id as the tie-breaker:
//
//	ORDER BY ts DESC, id DESC COLLATE BINARY  (inner, LIMIT n)
//	ORDER BY ts ASC,  id ASC  COLLATE BINARY  (outer)
//
// # Connections
//
// The driver opens a single connection in WAL journal mode with
// synchronous=NORMAL and a 5s busy timeout. The schema version lives in
// PRAGMA user_version and Open applies any missing migrations in order.
package store
