package relay

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbukum/pitwall/broadcast"
	"github.com/kbukum/pitwall/component"
	grpcx "github.com/kbukum/pitwall/grpc"
	"github.com/kbukum/pitwall/ingest"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/observer"
	"github.com/kbukum/pitwall/redis"
	"github.com/kbukum/pitwall/server"
	"github.com/kbukum/pitwall/telemetry"
)

// Relay owns the broadcast medium and every component built around it.
type Relay struct {
	cfg *Config
	log *logger.Logger

	medium    *broadcast.Medium[telemetry.Frame]
	endpoint  *ingest.Endpoint
	observers *observer.Handler
	grpc      *grpcx.Server
	http      *server.Server
	mirror    *redis.Mirror
	registry  *prometheus.Registry

	components []component.Component
}

// Option configures a Relay.
type Option func(*options)

type options struct {
	grpcListener net.Listener
	metrics      *observability.Metrics
}

// WithGRPCListener serves ingest on lis instead of binding grpc.host:port.
func WithGRPCListener(lis net.Listener) Option {
	return func(o *options) { o.grpcListener = lis }
}

// WithMetrics records OpenTelemetry instruments through m. By default the
// instruments come from the global meter provider.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds the relay from cfg. Defaults must already be applied, which
// bootstrap.NewApp does.
func New(cfg *Config, log *logger.Logger, opts ...Option) (*Relay, error) {
	if log == nil {
		log = logger.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		m, err := observability.NewMetrics(observability.Meter(observability.InstrumentationName))
		if err != nil {
			return nil, fmt.Errorf("relay metrics: %w", err)
		}
		o.metrics = m
	}

	medium, err := broadcast.New[telemetry.Frame](cfg.Broadcast.Capacity)
	if err != nil {
		return nil, err
	}
	r := &Relay{cfg: cfg, log: log.WithComponent("relay"), medium: medium}

	r.endpoint = ingest.NewEndpoint(medium,
		ingest.WithLogger(log),
		ingest.WithMetrics(o.metrics),
		ingest.WithProgressEvery(cfg.Ingest.ProgressEvery),
		ingest.WithExclusive(cfg.Ingest.Exclusive),
	)

	grpcOpts := []grpcx.ServerOption{grpcx.WithServeErrorHandler(r.serveFailed("grpc"))}
	if o.grpcListener != nil {
		grpcOpts = append(grpcOpts, grpcx.WithListener(o.grpcListener))
	}
	r.grpc, err = grpcx.NewServer(cfg.GRPC, log, grpcOpts...)
	if err != nil {
		return nil, err
	}
	r.grpc.RegisterService(&ingest.ServiceDesc, ingest.NewGRPCHandler(r.endpoint))

	r.observers, err = observer.NewHandler(medium, cfg.Observer,
		observer.WithLogger(log),
		observer.WithMetrics(o.metrics),
		observer.WithAllowedOrigins(cfg.Server.CORS.AllowedOrigins),
	)
	if err != nil {
		return nil, err
	}

	r.registry, err = observability.NewRegistry(observability.NewCollector(r.Stats))
	if err != nil {
		return nil, fmt.Errorf("relay metrics registry: %w", err)
	}

	r.http = server.New(cfg.Server, log, server.WithServeErrorHandler(r.serveFailed("http")))
	r.http.ApplyMiddleware()
	r.observers.Register(r.http.Engine())
	r.http.RegisterDefaultEndpoints(cfg.Name, r.health, observability.Handler(r.registry))
	r.http.OnShutdown(r.observers.Close)

	r.components = []component.Component{
		&mediumComponent{medium: medium},
		r.grpc,
		server.NewComponent(r.http),
	}
	if cfg.Mirror.Enabled {
		r.mirror = redis.NewMirror(medium, cfg.Mirror, redis.WithLogger(log), redis.WithMetrics(o.metrics))
		r.components = append(r.components, r.mirror)
	}
	return r, nil
}

// Register adds every component to reg in start order: medium, gRPC ingest,
// HTTP observers, mirror. The registry stops them in reverse.
func (r *Relay) Register(reg *component.Registry) error {
	for _, c := range r.components {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Components returns the relay's components in start order.
func (r *Relay) Components() []component.Component {
	return r.components
}

// Medium returns the shared broadcast medium.
func (r *Relay) Medium() *broadcast.Medium[telemetry.Frame] { return r.medium }

// Endpoint returns the ingest endpoint.
func (r *Relay) Endpoint() *ingest.Endpoint { return r.endpoint }

// GRPCAddr is the ingest listener address.
func (r *Relay) GRPCAddr() string { return r.grpc.Addr() }

// HTTPAddr is the observer listener address.
func (r *Relay) HTTPAddr() string { return r.http.Addr() }

// Stats is a point-in-time view of the relay, exported on /metrics.
func (r *Relay) Stats() observability.RelayStats {
	return observability.RelayStats{
		Broadcast:      r.medium.Stats(),
		FramesIngested: r.endpoint.FramesTotal(),
		ActiveStreams:  r.endpoint.ActiveStreams(),
		ActiveSessions: r.observers.ActiveSessions(),
	}
}

func (r *Relay) health(ctx context.Context) []component.Health {
	out := make([]component.Health, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c.Health(ctx))
	}
	return out
}

// serveFailed logs a boundary that stopped serving. The other boundary keeps
// running; /health reports the failed one as unhealthy.
func (r *Relay) serveFailed(boundary string) func(error) {
	return func(err error) {
		r.log.Error("Boundary stopped serving", logger.Fields("boundary", boundary, logger.FieldError, err.Error()))
	}
}
