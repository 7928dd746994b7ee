// Package store provides durable storage for entity definitions, value
// mappings, reconciled records and the change-event outbox.
//
// The store backs three runtime interfaces:
//   - pipeline.Catalog: entity definitions and shared value mappings
//   - pipeline.Records: one current document per (entity, record key)
//   - event.Publisher: an append-only outbox of CloudEvents
//
// # Drivers
//
// Open accepts a SQLite file path (github.com/mattn/go-sqlite3) or a
// postgres:// URL (github.com/lib/pq). Queries are written with "?"
// placeholders and rebound for Postgres.
//
// # Ordering
//
// Outbox events are ordered by seq, the insertion sequence, never by
// timestamp. Listings order by primary key with binary collation so output
// is stable across runs.
//
// # SQLite configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Documents are stored as canonical JSON (sorted keys, no HTML escaping) so
// the stored text of equal documents is identical.
package store
