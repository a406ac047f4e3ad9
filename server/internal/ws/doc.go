// Package ws implements the WebSocket hub for navd.
//
// Hub manages a set of connected clients and broadcasts the current network
// status summary to all of them on a configurable interval (default 5s in
// production).
//
// New(source, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker — blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// summary immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "status",
//	  "data":  { /* same schema as GET /api/v1/status */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. WebSocket endpoint is mounted at /ws/status by the server.
package ws
