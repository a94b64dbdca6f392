package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
func InitMeter(ctx context.Context, cfg Config, res Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	r, err := newResource(res)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Session end reasons.
const (
	ReasonDisconnected = "disconnected"
	ReasonLagged       = "lagged"
)

// Metrics holds the relay's instruments. A nil *Metrics records nothing.
type Metrics struct {
	framesIngested  metric.Int64Counter
	framesDelivered metric.Int64Counter
	framesSkipped   metric.Int64Counter
	sessionsActive  metric.Int64UpDownCounter
	sessionsEnded   metric.Int64Counter
	ingestStreams   metric.Int64Counter
}

// NewMetrics creates instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.framesIngested, err = meter.Int64Counter("pitwall.frames.ingested",
		metric.WithDescription("Frames received from producers and published to the broadcast medium")); err != nil {
		return nil, fmt.Errorf("creating pitwall.frames.ingested: %w", err)
	}
	if m.framesDelivered, err = meter.Int64Counter("pitwall.frames.delivered",
		metric.WithDescription("Frames written to observers")); err != nil {
		return nil, fmt.Errorf("creating pitwall.frames.delivered: %w", err)
	}
	if m.framesSkipped, err = meter.Int64Counter("pitwall.frames.skipped",
		metric.WithDescription("Frames observers lost to ring eviction")); err != nil {
		return nil, fmt.Errorf("creating pitwall.frames.skipped: %w", err)
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter("pitwall.sessions.active",
		metric.WithDescription("Observer sessions currently delivering")); err != nil {
		return nil, fmt.Errorf("creating pitwall.sessions.active: %w", err)
	}
	if m.sessionsEnded, err = meter.Int64Counter("pitwall.sessions.ended",
		metric.WithDescription("Observer sessions ended, by reason")); err != nil {
		return nil, fmt.Errorf("creating pitwall.sessions.ended: %w", err)
	}
	if m.ingestStreams, err = meter.Int64Counter("pitwall.ingest.streams",
		metric.WithDescription("Producer streams finished, by status")); err != nil {
		return nil, fmt.Errorf("creating pitwall.ingest.streams: %w", err)
	}
	return &m, nil
}

func (m *Metrics) FrameIngested(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesIngested.Add(ctx, 1)
}

func (m *Metrics) FrameDelivered(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.framesDelivered.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

func (m *Metrics) FramesSkipped(ctx context.Context, transport string, n uint64) {
	if m == nil {
		return
	}
	m.framesSkipped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("transport", transport)))
}

func (m *Metrics) SessionStarted(ctx context.Context, transport string) {
	if m == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1, metric.WithAttributes(attribute.String("transport", transport)))
}

func (m *Metrics) SessionEnded(ctx context.Context, transport, reason string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("transport", transport))
	m.sessionsActive.Add(ctx, -1, attrs)
	m.sessionsEnded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transport", transport),
		attribute.String("reason", reason),
	))
}

// StreamEnded records a finished producer stream; status is "ok" or an
// error code.
func (m *Metrics) StreamEnded(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.ingestStreams.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
