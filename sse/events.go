package sse

// Comment texts written by Writer. Comments are ignored by EventSource
// clients and never surface as messages.
const (
	CommentConnected = "connected"
	CommentKeepAlive = "keepalive"
)
