// Package timeouts defines shared timeout constants used by the service.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// WebsocketWrite caps a single refresh frame write to a websocket peer.
const WebsocketWrite = 2 * time.Second
