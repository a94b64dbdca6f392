package client

import (
	"context"
	"fmt"
	"time"
)

// StreamOpener opens a stream bound to ctx.
type StreamOpener[T any] func(ctx context.Context) (T, error)

// OpenStreamWithTimeout bounds only stream establishment by timeout. The
// stream itself stays bound to ctx, so a slow producer is not cut off once
// the stream is open. A non-positive timeout calls open directly.
func OpenStreamWithTimeout[T any](ctx context.Context, timeout time.Duration, open StreamOpener[T]) (T, error) {
	if timeout <= 0 {
		return open(ctx)
	}

	type opened struct {
		stream T
		err    error
	}
	ch := make(chan opened, 1)
	go func() {
		s, err := open(ctx)
		ch <- opened{s, err}
	}()

	var zero T
	select {
	case o := <-ch:
		return o.stream, o.err
	case <-time.After(timeout):
		return zero, fmt.Errorf("stream not established within %v", timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
