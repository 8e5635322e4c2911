// Package apiclient is the REST client the player, admin and MCP front-ends
// share. It speaks the API's JSON envelope, attaches bearer tokens and the
// calling service name, and propagates trace context on every request.
package apiclient
