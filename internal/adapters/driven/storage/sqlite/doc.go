// Package sqlite provides the SQLite-backed vector store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Embeddings are stored as little-endian float32 blobs; records keep an
// autoincrement seq that fixes ingestion order.
//
// # Data Location
//
// By default, the database is stored at ~/.ragdesk/data/vectors.db
//
// # Thread Safety
//
// All operations are thread-safe. Writes are serialised in process and every
// Upsert runs in one transaction, so readers in WAL mode see a batch
// entirely or not at all.
package sqlite
