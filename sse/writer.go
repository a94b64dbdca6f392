package sse

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = stderrors.New("sse: writer closed")

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = stderrors.New("sse: streaming not supported")

// Writer is a concurrency-safe SSE stream over one HTTP response.
type Writer struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
}

// NewWriter sends the SSE headers and an initial comment so the client sees
// the stream open before the first event.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, ErrStreamingUnsupported
	}
	rc := http.NewResponseController(w)
	// Long-lived streams must outlive the server's WriteTimeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !stderrors.Is(err, http.ErrNotSupported) {
		return nil, fmt.Errorf("sse: clearing write deadline: %w", err)
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	sw := &Writer{w: w, rc: rc}
	if err := sw.comment(CommentConnected); err != nil {
		return nil, err
	}
	return sw, nil
}

// Send writes data as one event. Multi-line payloads are split across data
// lines per the SSE framing rules.
func (s *Writer) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, line := range bytes.Split(data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.write(buf.Bytes())
}

// KeepAlive writes a comment every interval until ctx ends or a write
// fails. It returns the write error, or nil when ctx ended.
func (s *Writer) KeepAlive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return nil
			}
			err := s.comment(fmt.Sprintf("%s %d", CommentKeepAlive, t.Unix()))
			s.mu.Unlock()
			if err != nil {
				return err
			}
		}
	}
}

// Close stops further writes. The response itself ends when the handler
// returns. Idempotent.
func (s *Writer) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// comment must be called with mu held, or before the Writer is shared.
func (s *Writer) comment(text string) error {
	return s.write([]byte(": " + text + "\n\n"))
}

func (s *Writer) write(b []byte) error {
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	return s.rc.Flush()
}
