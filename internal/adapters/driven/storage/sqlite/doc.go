// Package sqlite provides SQLite-backed implementations of the document
// store and the vector index.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO. One database file holds both tables:
//
//   - DocumentStore: one row per ingested file
//   - VectorIndex: chunk metadata and float32 embedding blobs
//
// # Schema
//
// The schema is managed through versioned migrations embedded from the
// migrations/ directory.
//
// # Vector search
//
// Vectors are loaded into memory when the index is opened and searched by
// brute force. Writes go to the database in one transaction per call and
// then to the in-memory copy. An index.json manifest next to the database
// records the dimension, model and entry count; Verify compares it with
// the rows.
//
// # Data Location
//
// By default, files live in ~/.ragbot/data.
package sqlite
