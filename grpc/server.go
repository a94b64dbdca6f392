package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"

	"github.com/kbukum/pitwall/component"
	"github.com/kbukum/pitwall/grpc/interceptor"
	"github.com/kbukum/pitwall/logger"
)

const componentName = "grpc-server"

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// Server is a lifecycle-managed gRPC server.
type Server struct {
	cfg      Config
	log      *logger.Logger
	srv      *grpc.Server
	listener net.Listener
	onError  func(error)

	mu       sync.RWMutex
	serving  bool
	serveErr error
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	grpcOpts []grpc.ServerOption
	listener net.Listener
	onError  func(error)
}

// WithGRPCOptions appends raw grpc.ServerOptions.
func WithGRPCOptions(opts ...grpc.ServerOption) ServerOption {
	return func(o *serverOptions) { o.grpcOpts = append(o.grpcOpts, opts...) }
}

// WithListener serves on lis instead of binding cfg.Address(). Used with
// bufconn in tests.
func WithListener(lis net.Listener) ServerOption {
	return func(o *serverOptions) { o.listener = lis }
}

// WithServeErrorHandler is called when Serve returns unexpectedly.
func WithServeErrorHandler(fn func(error)) ServerOption {
	return func(o *serverOptions) { o.onError = fn }
}

// NewServer creates a gRPC server forcing the pass-through Codec, with
// recovery and logging interceptors installed.
func NewServer(cfg Config, log *logger.Logger, opts ...ServerOption) (*Server, error) {
	if log == nil {
		log = logger.Nop()
	}
	cfg.ApplyDefaults()
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	log = log.WithComponent(componentName)
	grpcOpts := []grpc.ServerOption{
		grpc.ForceServerCodec(Codec{}),
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.Keepalive.Time,
			Timeout: cfg.Keepalive.Timeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             cfg.Keepalive.Time / 2,
			PermitWithoutStream: cfg.Keepalive.PermitWithoutStream,
		}),
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryServerRecoveryInterceptor(log),
			interceptor.UnaryServerLoggingInterceptor(log),
		),
		grpc.ChainStreamInterceptor(
			interceptor.StreamServerRecoveryInterceptor(log),
			interceptor.StreamServerLoggingInterceptor(log),
		),
	}

	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("grpc: %w", err)
	}
	if tlsCfg != nil {
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	grpcOpts = append(grpcOpts, o.grpcOpts...)

	return &Server{
		cfg:      cfg,
		log:      log,
		srv:      grpc.NewServer(grpcOpts...),
		listener: o.listener,
		onError:  o.onError,
	}, nil
}

// RegisterService registers a service implementation. Call before Start.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl any) {
	s.srv.RegisterService(desc, impl)
}

// GRPCServer returns the underlying *grpc.Server.
func (s *Server) GRPCServer() *grpc.Server { return s.srv }

func (s *Server) Name() string { return componentName }

// Start binds the listener and serves in a goroutine. A bind failure is
// returned so startup aborts.
func (s *Server) Start(ctx context.Context) error {
	s.mu.RLock()
	lis := s.listener
	s.mu.RUnlock()
	if lis == nil {
		var err error
		lis, err = net.Listen("tcp", s.cfg.Address())
		if err != nil {
			return fmt.Errorf("grpc server failed to bind %s: %w", s.cfg.Address(), err)
		}
	}

	s.mu.Lock()
	s.listener = lis
	s.serving = true
	s.mu.Unlock()

	go func() {
		err := s.srv.Serve(lis)
		s.mu.Lock()
		s.serving = false
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.serveErr = err
		}
		s.mu.Unlock()
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.log.Error("gRPC serve error", logger.Fields(logger.FieldError, err.Error()))
			if s.onError != nil {
				s.onError(err)
			}
		}
	}()

	s.log.Info("gRPC server started", logger.Fields("addr", lis.Addr().String()))
	return nil
}

// Stop drains in-flight streams, falling back to a hard stop when ctx
// expires first.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down gRPC server")
	stopped := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.srv.Stop()
		<-stopped
	}
	return nil
}

func (s *Server) Health(_ context.Context) component.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.serving:
		return component.Health{Name: componentName, Status: component.StatusHealthy}
	case s.serveErr != nil:
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: s.serveErr.Error()}
	default:
		return component.Health{Name: componentName, Status: component.StatusUnhealthy, Message: "not serving"}
	}
}

func (s *Server) Describe() component.Description {
	return component.Description{
		Name:    "gRPC ingest",
		Type:    "grpc",
		Details: s.Addr(),
		Port:    s.cfg.Port,
	}
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Address()
}
