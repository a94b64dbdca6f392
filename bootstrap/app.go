package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/logger"
)

// App runs a set of components under a typed config.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error
	onStart         []Hook
	onReady         []Hook
	onStop          []Hook

	failOnce sync.Once
	failed   chan error
}

// NewApp applies defaults, validates cfg and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
		failed:          make(chan error, 1),
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(&base.Logging)
		app.Logger = logger.GetGlobalLogger()
	}

	app.Components = component.NewRegistry(app.Logger)
	app.Summary = NewSummary(base.Name, base.Version)
	if o.summaryOut != nil {
		app.Summary.out = o.summaryOut
	}
	return app, nil
}

// RegisterComponent adds a component to the registry.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure registers a callback that runs after components started.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// Fail reports a fatal runtime error, such as a listener that stopped
// serving. Run returns it after shutting down. Only the first call counts.
func (a *App[C]) Fail(err error) {
	if err == nil {
		return
	}
	a.failOnce.Do(func() { a.failed <- err })
}

// ReadyCheck verifies that all registered components are healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		detail := h.Name + "=" + string(h.Status)
		if h.Message != "" {
			detail += "(" + h.Message + ")"
		}
		unhealthy = append(unhealthy, detail)
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts everything, blocks until a signal, ctx cancellation or Fail,
// then shuts down.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.Logger.Info("Application ready")
	var runErr error
	select {
	case runErr = <-a.failed:
		a.Logger.Error("Fatal component failure", logger.Fields(logger.FieldError, runErr.Error()))
	case <-a.signalled(runCtx):
	}

	if err := a.stop(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

// RunTask runs a finite task with the same lifecycle as Run. The task
// context is canceled on SIGINT/SIGTERM or Fail.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		_ = a.stop()
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var failErr error
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case failErr = <-a.failed:
			cancel()
		case <-a.signalled(taskCtx):
			cancel()
		}
	}()

	taskErr := task(taskCtx)
	cancel()
	<-watchDone

	stopErr := a.stop()
	switch {
	case taskErr != nil:
		return taskErr
	case failErr != nil:
		return failErr
	default:
		return stopErr
	}
}

// Shutdown stops all components. Use when managing the lifecycle manually.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// DisplaySummary prints the startup summary.
func (a *App[C]) DisplaySummary() {
	a.Summary.Display(a.Components)
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary()
	return nil
}

// signalled returns a channel closed on SIGINT/SIGTERM or ctx cancellation.
func (a *App[C]) signalled(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		defer close(done)
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		case <-ctx.Done():
		}
	}()
	return done
}

func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, err.Error()))
		shutdownErr = err
	}

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}
