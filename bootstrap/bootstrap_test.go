package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/config"
	"github.com/kbukum/pitwall/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) component.Health { return m.health }

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() component.Description {
	return component.Description{Name: "gRPC ingest", Type: "grpc", Details: "127.0.0.1:50051"}
}

func (d *describedComponent) Routes() []component.Route {
	return []component.Route{{Method: "GET", Path: "/ws", Handler: "observer"}}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "pitwall", Version: "1.0", Environment: "development"}}
	opts = append([]Option{WithLogger(logger.Nop()), WithSummaryOutput(io.Discard)}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func healthy(name string) *mockComponent {
	return &mockComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "pitwall" {
		t.Errorf("expected name 'pitwall', got %q", app.Name)
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default 15s timeout, got %v", app.gracefulTimeout)
	}
	if app.Components == nil || app.Summary == nil {
		t.Error("expected registry and summary to be initialized")
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Environment: "development"}}
	if _, err := NewApp(cfg, WithLogger(logger.Nop())); err == nil {
		t.Error("expected validation error for missing name")
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(30*time.Second))
	if app.gracefulTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", app.gracefulTimeout)
	}
}

func TestReadyCheck(t *testing.T) {
	app := newTestApp(t)
	_ = app.RegisterComponent(healthy("grpc"))
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("expected ready, got %v", err)
	}

	_ = app.RegisterComponent(&mockComponent{name: "redis", health: component.Health{Name: "redis", Status: component.StatusDegraded, Message: "circuit open"}})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis=degraded(circuit open)") {
		t.Errorf("expected degraded redis in error, got %v", err)
	}
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	app := newTestApp(t)
	var order []string
	app.OnStart(func(ctx context.Context) error { order = append(order, "start"); return nil })
	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error { order = append(order, "configure"); return nil })
	app.OnReady(func(ctx context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(ctx context.Context) error { order = append(order, "stop"); return nil })

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	expected := []string{"start", "configure", "ready", "task", "stop"}
	if !slices.Equal(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestRunTaskError(t *testing.T) {
	app := newTestApp(t)
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		return fmt.Errorf("task error")
	})
	if err == nil || err.Error() != "task error" {
		t.Errorf("expected 'task error', got %v", err)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunTaskStopsComponents(t *testing.T) {
	app := newTestApp(t)
	comp := healthy("grpc")
	_ = app.RegisterComponent(comp)

	_ = app.RunTask(context.Background(), func(ctx context.Context) error { return nil })

	if !comp.started || !comp.stopped {
		t.Errorf("expected started and stopped, got started=%v stopped=%v", comp.started, comp.stopped)
	}
}

func TestRunTaskComponentStartError(t *testing.T) {
	app := newTestApp(t)
	first := healthy("grpc")
	_ = app.RegisterComponent(first)
	_ = app.RegisterComponent(&mockComponent{name: "http", startErr: errors.New("address already in use")})

	ran := false
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "address already in use") {
		t.Fatalf("expected bind error, got %v", err)
	}
	if ran {
		t.Error("expected task not to run after start failure")
	}
	if !first.stopped {
		t.Error("expected already-started component to be stopped")
	}
}

func TestRunTaskHookErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(a *App[*testConfig])
	}{
		{"start hook", func(a *App[*testConfig]) {
			a.OnStart(func(ctx context.Context) error { return errors.New("boom") })
		}},
		{"configure", func(a *App[*testConfig]) {
			a.OnConfigure(func(ctx context.Context, _ *App[*testConfig]) error { return errors.New("boom") })
		}},
		{"ready hook", func(a *App[*testConfig]) {
			a.OnReady(func(ctx context.Context) error { return errors.New("boom") })
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			tt.setup(app)
			err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil })
			if err == nil || !strings.Contains(err.Error(), "boom") {
				t.Errorf("expected boom error, got %v", err)
			}
		})
	}
}

func TestRunTaskStopHookError(t *testing.T) {
	app := newTestApp(t)
	app.OnStop(func(ctx context.Context) error { return errors.New("drain failed") })

	err := app.RunTask(context.Background(), func(ctx context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "drain failed") {
		t.Errorf("expected stop hook error, got %v", err)
	}
}

func TestRunReturnsOnFail(t *testing.T) {
	app := newTestApp(t)
	comp := healthy("grpc")
	_ = app.RegisterComponent(comp)
	app.OnReady(func(ctx context.Context) error {
		app.Fail(errors.New("listener closed"))
		app.Fail(errors.New("ignored"))
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil || err.Error() != "listener closed" {
			t.Errorf("expected 'listener closed', got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Fail")
	}
	if !comp.stopped {
		t.Error("expected component to be stopped")
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSummaryDisplay(t *testing.T) {
	var buf bytes.Buffer
	reg := component.NewRegistry(nil)
	_ = reg.Register(&describedComponent{mockComponent: *healthy("grpc")})
	_ = reg.Register(&mockComponent{name: "redis", health: component.Health{Name: "redis", Status: component.StatusUnhealthy, Message: "dial tcp"}})

	s := NewSummary("pitwall", "")
	s.out = &buf
	s.SetStartupDuration(1500 * time.Millisecond)
	s.Display(reg)

	out := buf.String()
	for _, want := range []string{
		"pitwall dev started in 1.50s",
		"gRPC ingest [grpc]: 127.0.0.1:50051",
		"GET     /ws → observer",
		"❌ redis: unhealthy (dial tcp)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected summary to contain %q, got:\n%s", want, out)
		}
	}
}

func TestSummaryDisplayEmpty(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummary("pitwall", "1.0")
	s.out = &buf
	s.Display(component.NewRegistry(nil))
	if !strings.Contains(buf.String(), "No components registered") {
		t.Errorf("expected empty notice, got %q", buf.String())
	}
}
