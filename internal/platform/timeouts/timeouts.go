// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the health listener.
const GRPCDial = 2 * time.Second

// HTTPClient caps a single REST call issued by the portal clients.
const HTTPClient = 10 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers and exporters wait for in-flight work
// during graceful shutdown.
const Shutdown = 5 * time.Second

// AutosaveName is the debounce window for sheet name edits.
const AutosaveName = 450 * time.Millisecond

// AutosaveNotes is the debounce window for sheet notes edits.
const AutosaveNotes = 650 * time.Millisecond
