// Package server composes and runs the REST API process.
//
// One HTTP listener serves the account, character and metrics routes over two
// SQLite stores; a second gRPC listener reports health for each store.
package server
