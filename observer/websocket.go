package observer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxInboundMessage = 512

// WebSocketSink writes one text message per frame.
type WebSocketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

var _ Sink = (*WebSocketSink)(nil)

func NewWebSocketSink(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketSink {
	return &WebSocketSink{conn: conn, writeTimeout: writeTimeout}
}

func (s *WebSocketSink) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// Close sends a normal-closure control frame and closes the connection.
func (s *WebSocketSink) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// readPump discards inbound data and calls cancel once the peer goes away.
// Pongs extend the read deadline.
func readPump(conn *websocket.Conn, pongWait time.Duration, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxInboundMessage)
	if pongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// pingLoop sends pings until ctx ends or a ping cannot be written.
func pingLoop(ctx context.Context, conn *websocket.Conn, interval, writeTimeout time.Duration, cancel context.CancelFunc) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				cancel()
				return
			}
		}
	}
}

// originChecker allows every origin when origins contains "*"; otherwise the
// Origin header must match one entry. Requests without Origin are not from a
// browser and are allowed.
func originChecker(origins []string) func(r *http.Request) bool {
	allowAll := len(origins) == 0
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
