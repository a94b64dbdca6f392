// Package observer runs one delivery session per connected observer.
//
// A Session subscribes to the broadcast medium, serializes each frame to
// JSON and pushes it into a Sink until the sink fails, the connection's
// context ends, or the cursor reports unrecoverable lag. Sessions never send
// an error message to the observer; they just stop.
//
// Sinks exist for WebSocket (gorilla/websocket) and Server-Sent Events; the
// session loop does not know which one it drives.
package observer
