// Package domain defines the MCP character tools and their handlers. Handlers
// talk to a SheetService so they can run against a player session or a fake.
package domain
