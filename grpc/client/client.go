package client

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	grpccfg "github.com/kbukum/pitwall/grpc"
	"github.com/kbukum/pitwall/grpc/interceptor"
	"github.com/kbukum/pitwall/logger"
)

// NewClient creates a gRPC client connection using the provided configuration
// and logger. It configures keepalive, TLS, message size limits, the
// pass-through codec and the stream logging interceptor.
func NewClient(cfg grpccfg.Config, log *logger.Logger, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if log == nil {
		log = logger.Nop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("grpc client config: %w", err)
	}

	target := cfg.Address()

	log.Info("Connecting to gRPC server", map[string]interface{}{
		"target": target,
		"tls":    cfg.TLS.Enabled,
	})

	opts, err := buildDialOptions(cfg, log)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		log.Error("Failed to create gRPC client", map[string]interface{}{
			"target": target,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("grpc: failed to create client for %s: %w", target, err)
	}

	return conn, nil
}

// buildDialOptions assembles all gRPC dial options from config.
func buildDialOptions(cfg grpccfg.Config, log *logger.Logger) ([]grpc.DialOption, error) {
	creds, err := transportCredentials(cfg.TLS)
	if err != nil {
		return nil, err
	}
	return []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.Keepalive.Time,
			Timeout:             cfg.Keepalive.Timeout,
			PermitWithoutStream: cfg.Keepalive.PermitWithoutStream,
		}),
		grpc.WithDefaultCallOptions(
			grpc.ForceCodec(grpccfg.Codec{}),
			grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize),
		),
		grpc.WithChainStreamInterceptor(
			interceptor.StreamClientLoggingInterceptor(log),
		),
	}, nil
}

// transportCredentials returns the appropriate transport credentials.
func transportCredentials(cfg grpccfg.TLSConfig) (credentials.TransportCredentials, error) {
	tlsCfg, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("grpc: %w", err)
	}
	if tlsCfg == nil {
		return insecure.NewCredentials(), nil
	}
	return credentials.NewTLS(tlsCfg), nil
}
