// Package server provides the relay's HTTP boundary: a Gin engine behind an
// h2c handler, wrapped as a lifecycle component.
//
// The server binds in Start so an unavailable port fails startup, then
// serves in its own goroutine. Observer transports (WebSocket, SSE) mount
// their routes on Engine().
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: Panic recovery with structured logging
//   - RequestID: Request ID generation and propagation
//   - CORS: permissive ("*") or restricted to an origin list
//   - RequestLogger: Request logging with duration tracking
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: Component health aggregation
//   - /info: Build and version information
//   - /metrics: Prometheus exposition
package server
