// Package component defines the lifecycle contract shared by the relay's
// long-running parts (gRPC server, HTTP server, Redis mirror) and a registry
// that starts them in order and stops them in reverse.
package component
