// Package prefs is the node's persistent key/value store.
//
// Values are grouped by namespace. A caller opens a namespace with
// Store.Begin, reads or writes string values, then releases it with End.
// Entities use a single namespace for every persisted value, keyed by their
// shortened name.
//
// # Backends
//
//   - sqlite: a preferences table in a local SQLite file, created by the
//     embedded migrations (default)
//   - bolt: one bbolt bucket per namespace
//   - memory: process-local map, used by tests and by nodes without storage
//
// # Thread Safety
//
// Every backend is safe for concurrent use. A Namespace handle must not be
// used after End.
package prefs
