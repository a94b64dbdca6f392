// Package observability wires OpenTelemetry metrics and tracing and the
// Prometheus /metrics surface for the relay.
//
// OTLP export is opt-in: with observability.enabled=false the global otel
// providers stay no-op and instruments cost nothing. The Prometheus collector
// is always available and reads live counters at scrape time.
//
//	shutdown, err := observability.Setup(ctx, cfg.Observability, info)
//	defer shutdown(ctx)
//	metrics, _ := observability.NewMetrics(observability.Meter(observability.InstrumentationName))
package observability
