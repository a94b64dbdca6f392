// Package ingest accepts producer telemetry streams and publishes every
// frame to the broadcast medium.
//
// Endpoint.Consume is transport-neutral: anything with a suspending Recv
// that reports io.EOF on graceful close can feed it. The gRPC binding for
// f1.F1TelemetryService/StreamTelemetry lives in grpc.go.
package ingest
