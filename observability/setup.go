package observability

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/kbukum/pitwall/logger"
)

// InstrumentationName scopes the relay's meters and tracers.
const InstrumentationName = "github.com/kbukum/pitwall"

// ShutdownFunc flushes and stops installed providers.
type ShutdownFunc func(ctx context.Context) error

// Setup installs OTLP meter and tracer providers when cfg.Enabled is set.
// When disabled it returns a no-op shutdown.
func Setup(ctx context.Context, cfg Config, res Resource) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	cfg.ApplyDefaults()

	mp, err := InitMeter(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracer(ctx, cfg, res)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	logger.Info("OTLP export enabled", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
		"sample_rate", cfg.SampleRate,
	))

	return func(ctx context.Context) error {
		return stderrors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newResource(res Resource) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", res.ServiceName),
			attribute.String("service.version", res.ServiceVersion),
			attribute.String("deployment.environment", res.Environment),
		),
	)
}
