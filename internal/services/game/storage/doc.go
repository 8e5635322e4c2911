// Package storage defines persistence for character sheets. The SQLite
// implementation lives in storage/sqlite.
//
// Common error types:
//   - ErrNotFound: requested sheet is missing
package storage
