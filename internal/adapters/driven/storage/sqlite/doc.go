// Package sqlite provides a SQLite-based implementation of the driven
// storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. It implements the store interfaces through a single
// database connection:
//
//   - DownloadStore: queued tasks, chapter fetch records and cache entries
//   - SchedulerStore: maintenance task state and run history
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files and
// applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.tomes/data/tomes.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite locking in
// WAL mode.
package sqlite
