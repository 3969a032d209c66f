// Package timeouts defines shared timeout constants used by the server.
// Centralizing these values keeps listener and shutdown behaviour consistent.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Request caps the time allowed for a single HTTP request, including the
// bcrypt comparison and store round-trips.
const Request = 10 * time.Second

// Shutdown limits how long the servers wait for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
