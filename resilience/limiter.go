package resilience

import (
	stderrors "errors"
	"sync/atomic"
)

// ErrLimitReached is returned by Limiter.TryAcquire when every slot is taken.
var ErrLimitReached = stderrors.New("concurrency limit reached")

// Limiter caps the number of concurrently held slots. A zero or negative
// max means unlimited.
type Limiter struct {
	max   int64
	inUse atomic.Int64
}

// NewLimiter creates a limiter with max slots.
func NewLimiter(max int) *Limiter {
	return &Limiter{max: int64(max)}
}

// TryAcquire takes a slot without waiting. The returned release func must be
// called exactly once; extra calls are ignored.
func (l *Limiter) TryAcquire() (release func(), err error) {
	n := l.inUse.Add(1)
	if l.max > 0 && n > l.max {
		l.inUse.Add(-1)
		return nil, ErrLimitReached
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.inUse.Add(-1)
		}
	}, nil
}

// InUse returns the number of held slots.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Max returns the configured limit; 0 means unlimited.
func (l *Limiter) Max() int {
	if l.max < 0 {
		return 0
	}
	return int(l.max)
}
