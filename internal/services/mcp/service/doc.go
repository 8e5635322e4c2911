// Package service hosts the MCP server: it registers the character tools
// against a player session and serves them over stdio or streamable HTTP.
package service
