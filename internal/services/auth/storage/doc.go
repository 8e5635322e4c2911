// Package storage defines persistence contracts for portal accounts.
//
// Handlers depend on these interfaces rather than the SQLite schema so tests
// can swap in fakes.
package storage
