package broadcast

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Cursor.Next after the cursor or the medium was
// closed.
var ErrClosed = stderrors.New("broadcast: closed")

// LaggedError reports that a cursor missed Skipped items to eviction. The
// cursor has already been moved to the oldest retained item.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: lagged, skipped %d items", e.Skipped)
}

// Lagged reports whether err is a *LaggedError and how many items were lost.
func Lagged(err error) (uint64, bool) {
	var lagErr *LaggedError
	if stderrors.As(err, &lagErr) {
		return lagErr.Skipped, true
	}
	return 0, false
}

// Stats is a point-in-time view of a medium.
type Stats struct {
	Capacity    int    `json:"capacity"`
	Published   uint64 `json:"published"`
	Retained    int    `json:"retained"`
	Subscribers int    `json:"subscribers"`
}

// Medium is a fixed-capacity broadcast ring. The zero value is not usable;
// construct with New.
type Medium[T any] struct {
	mu     sync.RWMutex
	ring   []T
	next   uint64 // sequence number the next published item receives
	notify chan struct{}
	subs   int
	closed bool
}

// New creates a medium retaining the last capacity items.
func New[T any](capacity int) (*Medium[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("broadcast: capacity must be positive, got %d", capacity)
	}
	return &Medium[T]{
		ring:   make([]T, capacity),
		notify: make(chan struct{}),
	}, nil
}

// Publish appends v, evicting the oldest item when the ring is full, and
// wakes waiting cursors. It never blocks on readers and returns the number of
// cursors subscribed at publish time; zero is not an error. Publishing to a
// closed medium is a no-op.
func (m *Medium[T]) Publish(v T) int {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	m.ring[m.next%uint64(len(m.ring))] = v
	m.next++
	wake := m.notify
	m.notify = make(chan struct{})
	subs := m.subs
	m.mu.Unlock()

	close(wake)
	return subs
}

// Subscribe returns a cursor that observes only items published after this
// call.
func (m *Medium[T]) Subscribe() *Cursor[T] {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &Cursor[T]{m: m, pos: m.next, done: make(chan struct{})}
	if m.closed {
		c.closed = true
		c.closeOnce.Do(func() { close(c.done) })
		return c
	}
	m.subs++
	return c
}

// Close wakes every cursor; further Next calls return ErrClosed once the
// retained items they have not read are exhausted. Idempotent.
func (m *Medium[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.notify)
}

// Stats returns counters for health and metrics.
func (m *Medium[T]) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	retained := len(m.ring)
	if m.next < uint64(retained) {
		retained = int(m.next)
	}
	return Stats{
		Capacity:    len(m.ring),
		Published:   m.next,
		Retained:    retained,
		Subscribers: m.subs,
	}
}

// Capacity returns the ring size.
func (m *Medium[T]) Capacity() int {
	return len(m.ring)
}

func (m *Medium[T]) oldest() uint64 {
	if c := uint64(len(m.ring)); m.next > c {
		return m.next - c
	}
	return 0
}

// Cursor is one subscriber's read position. A cursor is used by a single
// goroutine; Close may be called from any goroutine.
type Cursor[T any] struct {
	m   *Medium[T]
	pos uint64

	closeOnce sync.Once
	done      chan struct{}
	closed    bool
}

// Next returns the next item, waiting for it if necessary.
//
// If the cursor's position has been evicted, Next returns a *LaggedError
// and repositions the cursor on the oldest retained item; the following call
// returns that item. Next returns ctx.Err() when ctx is done and ErrClosed
// after Close.
func (c *Cursor[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		c.m.mu.RLock()
		if c.isClosed() {
			c.m.mu.RUnlock()
			return zero, ErrClosed
		}
		if oldest := c.m.oldest(); c.pos < oldest {
			c.m.mu.RUnlock()
			if err := c.lag(); err != nil {
				return zero, err
			}
			continue
		}
		if c.pos < c.m.next {
			v := c.m.ring[c.pos%uint64(len(c.m.ring))]
			c.pos++
			c.m.mu.RUnlock()
			return v, nil
		}
		if c.m.closed {
			c.m.mu.RUnlock()
			return zero, ErrClosed
		}
		wait := c.m.notify
		c.m.mu.RUnlock()

		select {
		case <-wait:
		case <-c.done:
			return zero, ErrClosed
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// lag repositions the cursor under the write lock; the publisher may have
// moved on since the read lock was released.
func (c *Cursor[T]) lag() error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()

	oldest := c.m.oldest()
	if c.pos >= oldest {
		return nil
	}
	skipped := oldest - c.pos
	c.pos = oldest
	return &LaggedError{Skipped: skipped}
}

func (c *Cursor[T]) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close releases the cursor. Idempotent.
func (c *Cursor[T]) Close() {
	c.closeOnce.Do(func() {
		c.m.mu.Lock()
		if !c.closed {
			c.closed = true
			c.m.subs--
		}
		c.m.mu.Unlock()
		close(c.done)
	})
}
