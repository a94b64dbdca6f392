package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/pitwall/broadcast"
	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/telemetry"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startMirror(t *testing.T, mr *miniredis.Miniredis, medium *broadcast.Medium[telemetry.Frame], cfg Config) *Mirror {
	t.Helper()
	cfg.Enabled = true
	cfg.Addr = mr.Addr()
	m := NewMirror(medium, cfg, WithLogger(logger.Nop()))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "mirror subscription", func() bool { return medium.Stats().Subscribers == 1 })
	return m
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Channel != "pitwall:frames" {
		t.Errorf("expected default channel, got %s", cfg.Channel)
	}
	if cfg.BreakerFailures != 5 {
		t.Errorf("expected 5 breaker failures, got %d", cfg.BreakerFailures)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled config should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing addr", func(c *Config) { c.Addr = "" }, true},
		{"bad dial timeout", func(c *Config) { c.DialTimeout = "soon" }, true},
		{"bad breaker timeout", func(c *Config) { c.BreakerTimeout = "10" }, true},
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Addr = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Enabled: true}
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMirror_PublishesFramesInOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	medium, _ := broadcast.New[telemetry.Frame](100)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()
	sub := rdb.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	msgs := sub.Channel()

	m := startMirror(t, mr, medium, Config{})
	defer m.Stop(ctx)

	for i := 0; i < 20; i++ {
		medium.Publish(telemetry.Frame{DriverID: "VER", TimestampMs: int64(i)})
	}

	for i := 0; i < 20; i++ {
		select {
		case msg := <-msgs:
			f, err := telemetry.ParseFrame([]byte(msg.Payload))
			if err != nil {
				t.Fatalf("frame %d: invalid JSON %q: %v", i, msg.Payload, err)
			}
			if f.TimestampMs != int64(i) || f.DriverID != "VER" {
				t.Fatalf("expected frame %d, got %+v", i, f)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	waitFor(t, "published count", func() bool { return m.Published() == 20 })
	if m.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", m.Dropped())
	}
	if h := m.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
}

func TestMirror_RedisDownDoesNotBlockPublishers(t *testing.T) {
	mr := miniredis.RunT(t)
	medium, _ := broadcast.New[telemetry.Frame](100)
	m := startMirror(t, mr, medium, Config{BreakerFailures: 2, BreakerTimeout: "1m", DialTimeout: "100ms"})
	defer m.Stop(context.Background())

	mr.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			medium.Publish(telemetry.Frame{DriverID: "HAM", TimestampMs: int64(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on the mirror")
	}

	waitFor(t, "dropped frames", func() bool { return m.Dropped() > 0 })
	if h := m.Health(context.Background()); h.Status != component.StatusDegraded {
		t.Errorf("expected degraded, got %s", h.Status)
	}
}

func TestMirror_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	medium, _ := broadcast.New[telemetry.Frame](10)
	m := NewMirror(medium, Config{Enabled: true, Addr: mr.Addr()})

	if h := m.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("expected second start to fail")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, "cursor release", func() bool { return medium.Stats().Subscribers == 0 })
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("second stop should be a no-op, got %v", err)
	}
}

func TestMirror_DisabledFailsStart(t *testing.T) {
	medium, _ := broadcast.New[telemetry.Frame](10)
	m := NewMirror(medium, Config{})
	if err := m.Start(context.Background()); err == nil {
		t.Error("expected disabled mirror to refuse to start")
	}
}
