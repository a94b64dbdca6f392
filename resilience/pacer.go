package resilience

import (
	"context"
	"sync"
	"time"
)

// Pacer is a token bucket: Wait returns immediately while tokens remain and
// otherwise sleeps until the next one accrues.
type Pacer struct {
	rate  float64
	burst float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewPacer allows rate events per second with bursts of up to burst.
// A non-positive rate disables pacing.
func NewPacer(rate float64, burst int) *Pacer {
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{rate: rate, burst: float64(burst), tokens: float64(burst), last: time.Now()}
}

// Wait blocks until one event is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.rate <= 0 {
		return ctx.Err()
	}
	delay := p.reserve()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// reserve takes a token, going into debt when none is left, and returns how
// long the caller must wait for the debt to clear.
func (p *Pacer) reserve() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.tokens += now.Sub(p.last).Seconds() * p.rate
	p.last = now
	if p.tokens > p.burst {
		p.tokens = p.burst
	}

	p.tokens--
	if p.tokens >= 0 {
		return 0
	}
	return time.Duration(-p.tokens / p.rate * float64(time.Second))
}
