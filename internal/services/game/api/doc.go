// Package api contains the game service transports.
//
// Subpackages:
//   - httpapi: character sheet CRUD and dot-path updates under /game/characters
package api
