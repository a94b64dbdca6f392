package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/kbukum/pitwall/broadcast"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected default endpoint, got %q", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %v", cfg.SampleRate)
	}
	if cfg.Interval <= 0 {
		t.Errorf("expected positive interval, got %v", cfg.Interval)
	}
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{}, Resource{ServiceName: "pitwall"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected nil shutdown error, got %v", err)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.FrameIngested(ctx)
	m.FrameDelivered(ctx, "ws")
	m.FramesSkipped(ctx, "ws", 3)
	m.SessionStarted(ctx, "ws")
	m.SessionEnded(ctx, "ws", ReasonLagged)
	m.StreamEnded(ctx, "ok")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp.Meter(InstrumentationName))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.FrameIngested(ctx)
	}
	m.FrameDelivered(ctx, "ws")
	m.FrameDelivered(ctx, "sse")
	m.SessionStarted(ctx, "ws")
	m.SessionStarted(ctx, "ws")
	m.SessionEnded(ctx, "ws", ReasonDisconnected)
	m.StreamEnded(ctx, "ok")

	got := collect(t, reader)

	ingested, ok := got["pitwall.frames.ingested"].Data.(metricdata.Sum[int64])
	if !ok || len(ingested.DataPoints) != 1 {
		t.Fatalf("expected one ingested data point, got %+v", got["pitwall.frames.ingested"].Data)
	}
	if ingested.DataPoints[0].Value != 5 {
		t.Errorf("expected 5 frames ingested, got %d", ingested.DataPoints[0].Value)
	}

	delivered, ok := got["pitwall.frames.delivered"].Data.(metricdata.Sum[int64])
	if !ok || len(delivered.DataPoints) != 2 {
		t.Errorf("expected delivered points per transport, got %+v", got["pitwall.frames.delivered"].Data)
	}

	active, ok := got["pitwall.sessions.active"].Data.(metricdata.Sum[int64])
	if !ok || len(active.DataPoints) != 1 {
		t.Fatalf("expected one active-session point, got %+v", got["pitwall.sessions.active"].Data)
	}
	if active.DataPoints[0].Value != 1 {
		t.Errorf("expected 1 active session, got %d", active.DataPoints[0].Value)
	}

	ended, ok := got["pitwall.sessions.ended"].Data.(metricdata.Sum[int64])
	if !ok || len(ended.DataPoints) != 1 {
		t.Fatalf("expected one ended point, got %+v", got["pitwall.sessions.ended"].Data)
	}
	reason, _ := ended.DataPoints[0].Attributes.Value(attribute.Key("reason"))
	if reason.AsString() != ReasonDisconnected {
		t.Errorf("expected reason %q, got %q", ReasonDisconnected, reason.AsString())
	}
}

func TestCollector(t *testing.T) {
	stats := RelayStats{
		Broadcast:      broadcast.Stats{Capacity: 100, Published: 250, Retained: 100, Subscribers: 3},
		FramesIngested: 250,
		ActiveStreams:  1,
		ActiveSessions: 3,
	}
	c := NewCollector(func() RelayStats { return stats })

	if n := testutil.CollectAndCount(c); n != 7 {
		t.Errorf("expected 7 metrics, got %d", n)
	}

	expected := `
# HELP pitwall_broadcast_published_total Frames published to the broadcast medium.
# TYPE pitwall_broadcast_published_total counter
pitwall_broadcast_published_total 250
# HELP pitwall_observer_sessions_active Observer sessions currently open.
# TYPE pitwall_observer_sessions_active gauge
pitwall_observer_sessions_active 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"pitwall_broadcast_published_total", "pitwall_observer_sessions_active"); err != nil {
		t.Errorf("unexpected collector output: %v", err)
	}
}

func TestRegistryHandler(t *testing.T) {
	c := NewCollector(func() RelayStats { return RelayStats{Broadcast: broadcast.Stats{Capacity: 10}} })
	reg, err := NewRegistry(c)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"pitwall_broadcast_capacity 10", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
}
