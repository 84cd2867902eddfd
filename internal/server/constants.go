// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Inbound websocket messages allowed per connection per window.
	RateLimitMessages = 20
	RateLimitWindow   = time.Second

	// Broadcast queue depths. Events are dropped rather than blocking
	// the processing goroutine.
	DecisionQueueSize = 64
	SnapshotQueueSize = 16

	// Row caps for the history endpoints.
	DefaultHistoryRows = 100
	MaxHistoryRows     = 500
)
