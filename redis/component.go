package redis

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/observer"
	"github.com/kbukum/pitwall/resilience"
)

// TransportRedis labels the mirror's session in logs and metrics.
const TransportRedis = "redis"

var (
	_ component.Component   = (*Mirror)(nil)
	_ component.Describable = (*Mirror)(nil)
)

// Mirror is a component that republishes every frame to a Redis channel.
type Mirror struct {
	cfg     Config
	src     observer.Source
	log     *logger.Logger
	metrics *observability.Metrics
	breaker *resilience.CircuitBreaker

	mu     sync.Mutex
	client *Client
	cancel context.CancelFunc
	done   chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Mirror.
type Option func(*Mirror)

func WithLogger(log *logger.Logger) Option {
	return func(m *Mirror) {
		if log != nil {
			m.log = log
		}
	}
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Mirror) { m.metrics = metrics }
}

// NewMirror creates a mirror reading frames from src.
func NewMirror(src observer.Source, cfg Config, opts ...Option) *Mirror {
	cfg.ApplyDefaults()
	m := &Mirror{cfg: cfg, src: src, log: logger.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithComponent("redis-mirror")
	m.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "redis-mirror",
		MaxFailures: cfg.BreakerFailures,
		Timeout:     cfg.breakerTimeout(),
		OnStateChange: func(name string, from, to resilience.State) {
			m.log.Warn("Mirror circuit state changed", logger.Fields("from", from.String(), "to", to.String()))
		},
	})
	return m
}

// Name returns the component name.
func (m *Mirror) Name() string { return "redis-mirror" }

// Start connects to Redis and begins mirroring. An unreachable server is
// logged but does not fail startup; the breaker absorbs publish errors until
// it comes back.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return fmt.Errorf("redis mirror already started")
	}

	client, err := New(m.cfg, m.log)
	if err != nil {
		return fmt.Errorf("redis mirror start: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		m.log.Warn("Redis unreachable, mirror will keep retrying", logger.ErrorFields("ping", err))
	}
	m.client = client

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})

	session := observer.NewSession(m.src, &publisher{m: m},
		observer.WithTransport(TransportRedis),
		observer.WithLagPolicy(observer.LagResume),
		observer.WithSessionLogger(m.log),
		observer.WithSessionMetrics(m.metrics),
	)
	go func() {
		defer close(m.done)
		session.Run(runCtx)
	}()

	m.log.Info("Redis mirror started", logger.Fields("addr", m.cfg.Addr, "channel", m.cfg.Channel))
	return nil
}

// Stop ends the mirror session and closes the connection.
func (m *Mirror) Stop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		return nil
	}
	m.cancel()
	<-m.done
	err := m.client.Close()
	m.client = nil
	m.log.Info("Redis mirror stopped", logger.Fields("published", m.published.Load(), "dropped", m.dropped.Load()))
	return err
}

// Health reports unhealthy before Start and degraded while Redis is failing.
func (m *Mirror) Health(ctx context.Context) component.Health {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return component.Health{Name: m.Name(), Status: component.StatusUnhealthy, Message: "mirror not started"}
	}
	if m.breaker.State() == resilience.StateOpen {
		return component.Health{Name: m.Name(), Status: component.StatusDegraded, Message: "circuit open"}
	}
	if err := client.Ping(ctx); err != nil {
		return component.Health{Name: m.Name(), Status: component.StatusDegraded, Message: err.Error()}
	}
	return component.Health{Name: m.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (m *Mirror) Describe() component.Description {
	return component.Description{
		Name:    "Redis mirror",
		Type:    "redis",
		Details: fmt.Sprintf("%s channel=%s", m.cfg.Addr, m.cfg.Channel),
	}
}

// Published returns how many frames reached Redis.
func (m *Mirror) Published() uint64 { return m.published.Load() }

// Dropped returns how many frames failed to publish or were rejected by the
// open breaker.
func (m *Mirror) Dropped() uint64 { return m.dropped.Load() }

// publisher is the mirror's observer.Sink. Send never fails the session.
type publisher struct {
	m *Mirror
}

func (p *publisher) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := p.m
	err := m.breaker.Execute(func() error {
		_, err := m.client.Publish(ctx, m.cfg.Channel, msg)
		return err
	})
	if err == nil {
		m.published.Add(1)
		return nil
	}
	m.dropped.Add(1)
	if !stderrors.Is(err, resilience.ErrCircuitOpen) && ctx.Err() == nil {
		m.log.Debug("Mirror publish failed", logger.ErrorFields("publish", err))
	}
	return nil
}

func (p *publisher) Close() error { return nil }
