// Package timeouts defines shared timeout constants used across the
// coordinator. Centralizing these values keeps the durations discoverable
// and prevents drift between the transport and storage boundaries.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// BroadcastWrite bounds a single event write to a participant connection so
// one stalled peer cannot hold up a session broadcast indefinitely.
const BroadcastWrite = 5 * time.Second

// MirrorWrite bounds a write-behind session snapshot to the persistence
// mirror.
const MirrorWrite = 5 * time.Second
