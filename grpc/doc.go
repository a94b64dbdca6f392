// Package grpc hosts the relay's gRPC boundary: server and client
// configuration, a lifecycle-managed server component, a pass-through codec
// for hand-decoded protobuf messages, and AppError to status mapping.
//
// # Server
//
// Server binds in Start so a port conflict fails startup, then serves in its
// own goroutine:
//
//	srv := grpc.NewServer(cfg, log)
//	srv.RegisterService(&ingest.ServiceDesc, handler)
//	registry.Register(srv)
//
// # Client
//
// The grpc/client sub-package dials with keepalive, TLS and logging
// interceptors. The grpc/interceptor sub-package holds logging and recovery
// interceptors plus retry classification of status codes.
package grpc
