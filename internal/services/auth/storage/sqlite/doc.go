// Package sqlite provides SQLite-backed account persistence.
package sqlite
