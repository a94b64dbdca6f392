// Package errors provides the relay's structured error type.
//
// Every failure that crosses a boundary (a producer stream ending in error,
// an HTTP endpoint rejecting a request) is an *AppError carrying a
// machine-readable code. Transport bindings translate codes into their own
// vocabulary: the gRPC ingest maps them to status codes, the HTTP server to
// status codes plus a JSON body.
package errors
