package observer

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/kbukum/pitwall/errors"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/resilience"
	"github.com/kbukum/pitwall/server"
	"github.com/kbukum/pitwall/sse"
)

// Transport names used in logs and metrics.
const (
	TransportWebSocket = "ws"
	TransportSSE       = "sse"
)

// Handler accepts observer connections and runs a Session for each.
type Handler struct {
	src      Source
	cfg      Config
	policy   LagPolicy
	limiter  *resilience.Limiter
	upgrader websocket.Upgrader
	log      *logger.Logger
	metrics  *observability.Metrics

	base   context.Context
	cancel context.CancelFunc
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

func WithLogger(log *logger.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins.
// "*" or an empty list allows any origin.
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = originChecker(origins) }
}

// NewHandler creates a handler. cfg must have defaults applied.
func NewHandler(src Source, cfg Config, opts ...HandlerOption) (*Handler, error) {
	policy, err := ParseLagPolicy(cfg.LagPolicy)
	if err != nil {
		return nil, apperrors.InvalidInput("observer.lag_policy", err.Error())
	}
	base, cancel := context.WithCancel(context.Background())
	h := &Handler{
		src:     src,
		cfg:     cfg,
		policy:  policy,
		limiter: resilience.NewLimiter(cfg.MaxSessions),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(nil),
		},
		log:    logger.Nop(),
		base:   base,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithComponent("observer")
	return h, nil
}

// Register mounts the WebSocket and SSE routes.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(h.cfg.WSPath, h.ServeWS)
	r.GET(h.cfg.SSEPath, h.ServeSSE)
}

// ActiveSessions is the number of sessions currently running.
func (h *Handler) ActiveSessions() int { return h.limiter.InUse() }

// Close ends every running session. Call when the HTTP server begins
// shutting down; hijacked WebSocket connections are not tracked by it.
func (h *Handler) Close() { h.cancel() }

// ServeWS upgrades the request and streams frames as text messages.
func (h *Handler) ServeWS(c *gin.Context) {
	release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Debug("WebSocket upgrade failed", logger.Fields(
			logger.FieldPeer, c.Request.RemoteAddr,
			logger.FieldError, err.Error(),
		))
		return
	}

	ctx, cancel := h.sessionContext(c.Request.Context())
	defer cancel()

	pongWait := 2 * h.cfg.PingInterval
	go readPump(conn, pongWait, cancel)
	go pingLoop(ctx, conn, h.cfg.PingInterval, h.cfg.WriteTimeout, cancel)

	h.run(ctx, c, NewWebSocketSink(conn, h.cfg.WriteTimeout), TransportWebSocket)
}

// ServeSSE streams frames as Server-Sent Events.
func (h *Handler) ServeSSE(c *gin.Context) {
	release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		server.AbortWithError(c, apperrors.Internal(err))
		return
	}

	ctx, cancel := h.sessionContext(c.Request.Context())
	defer cancel()

	go func() {
		if err := w.KeepAlive(ctx, h.cfg.KeepAlive); err != nil {
			cancel()
		}
	}()

	h.run(ctx, c, w, TransportSSE)
}

func (h *Handler) run(ctx context.Context, c *gin.Context, sink Sink, transport string) {
	log := h.log.WithFields(map[string]interface{}{
		logger.FieldPeer: c.Request.RemoteAddr,
	})
	if id := c.GetString(logger.FieldRequestID); id != "" {
		log = log.WithFields(map[string]interface{}{logger.FieldRequestID: id})
	}

	session := NewSession(h.src, sink,
		WithTransport(transport),
		WithLagPolicy(h.policy),
		WithSessionLogger(log),
		WithSessionMetrics(h.metrics),
	)
	session.Run(ctx)
}

// sessionContext ends when the request ends or Close is called.
func (h *Handler) sessionContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(h.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (h *Handler) acquire(c *gin.Context) (func(), bool) {
	release, err := h.limiter.TryAcquire()
	if err == nil {
		return release, true
	}
	if stderrors.Is(err, resilience.ErrLimitReached) {
		h.log.Warn("Observer rejected, session limit reached", logger.Fields(
			logger.FieldPeer, c.Request.RemoteAddr,
			"max_sessions", h.limiter.Max(),
		))
	}
	server.AbortWithError(c, apperrors.ServiceUnavailable("observer feed"))
	return nil, false
}
