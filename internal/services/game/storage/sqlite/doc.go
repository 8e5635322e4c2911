// Package sqlite persists character sheets in SQLite.
//
// Each row stores the full sheet as a JSON document next to the columns the
// list endpoint filters and sorts on, so reads never reassemble a sheet from
// several tables.
package sqlite
