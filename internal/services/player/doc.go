// Package player is the player portal session: sign-in state, cached sheet
// queries and optimistic sheet edits with alerts on failure.
//
// A Session is front-end agnostic. The player CLI and the MCP server both
// drive one.
package player
