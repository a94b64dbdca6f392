package observer

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/pitwall/broadcast"
	apperrors "github.com/kbukum/pitwall/errors"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/telemetry"
)

// Sink is an observer's outbound channel. Send suspends until the message is
// written or fails; a failure means the observer is gone.
type Sink interface {
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// Source hands out cursors. *broadcast.Medium[telemetry.Frame] satisfies it.
type Source interface {
	Subscribe() *broadcast.Cursor[telemetry.Frame]
}

// State is a session's lifecycle position.
type State int32

const (
	StateConnecting State = iota
	StateSubscribed
	StateDelivering
	StateDisconnected
	StateLaggedTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDelivering:
		return "delivering"
	case StateDisconnected:
		return "disconnected"
	case StateLaggedTerminated:
		return "lagged_terminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a session.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateLaggedTerminated
}

// Result describes how a session ended.
type Result struct {
	ID        string
	State     State
	Delivered uint64
	Skipped   uint64
	// Err is the send failure, context error, or *errors.AppError with
	// code LAGGED that ended the session. Nil when the medium closed.
	Err error
}

// Session delivers frames from a Source to one Sink.
type Session struct {
	id        string
	transport string
	src       Source
	sink      Sink
	policy    LagPolicy
	log       *logger.Logger
	metrics   *observability.Metrics

	state atomic.Int32
}

// SessionOption configures a Session.
type SessionOption func(*Session)

func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithTransport labels logs and metrics, e.g. "ws" or "sse".
func WithTransport(name string) SessionOption {
	return func(s *Session) { s.transport = name }
}

func WithLagPolicy(p LagPolicy) SessionOption {
	return func(s *Session) { s.policy = p }
}

func WithSessionLogger(log *logger.Logger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

func WithSessionMetrics(m *observability.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates a session in StateConnecting.
func NewSession(src Source, sink Sink, opts ...SessionOption) *Session {
	s := &Session{
		src:       src,
		sink:      sink,
		transport: "custom",
		policy:    LagTerminate,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.log = s.log.WithFields(map[string]interface{}{
		logger.FieldSessionID: s.id,
		logger.FieldTransport: s.transport,
	})
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// Run delivers frames until the session ends. The cursor is released and
// the sink closed before Run returns.
func (s *Session) Run(ctx context.Context) Result {
	cur := s.src.Subscribe()
	s.setState(StateSubscribed)
	s.metrics.SessionStarted(ctx, s.transport)
	s.log.Info("Observer connected")

	start := time.Now()
	res := s.deliver(ctx, cur)

	cur.Close()
	_ = s.sink.Close()
	s.setState(res.State)

	reason := observability.ReasonDisconnected
	if res.State == StateLaggedTerminated {
		reason = observability.ReasonLagged
	}
	s.metrics.SessionEnded(context.WithoutCancel(ctx), s.transport, reason)

	fields := logger.DurationFields(map[string]interface{}{
		logger.FieldFrames:  res.Delivered,
		logger.FieldSkipped: res.Skipped,
		logger.FieldReason:  reason,
	}, time.Since(start))
	if res.Err != nil {
		fields[logger.FieldError] = res.Err.Error()
	}
	s.log.Info("Observer disconnected", fields)
	return res
}

func (s *Session) deliver(ctx context.Context, cur *broadcast.Cursor[telemetry.Frame]) Result {
	res := Result{ID: s.id}
	for {
		frame, err := cur.Next(ctx)
		if err != nil {
			skipped, lagged := broadcast.Lagged(err)
			if !lagged {
				res.State = StateDisconnected
				if !stderrors.Is(err, broadcast.ErrClosed) {
					res.Err = err
				}
				return res
			}

			res.Skipped += skipped
			s.metrics.FramesSkipped(ctx, s.transport, skipped)
			if s.policy == LagResume {
				s.log.Warn("Observer lagged, resuming at oldest retained frame", logger.Fields(logger.FieldSkipped, skipped))
				continue
			}
			s.log.Warn("Observer lagged, terminating session", logger.Fields(logger.FieldSkipped, skipped))
			res.State = StateLaggedTerminated
			res.Err = apperrors.Lagged(skipped)
			return res
		}

		msg, err := frame.JSON()
		if err != nil {
			s.log.Debug("Frame not serializable", logger.Fields(
				logger.FieldDriverID, frame.DriverID,
				logger.FieldError, err.Error(),
			))
			continue
		}

		s.setState(StateDelivering)
		if err := s.sink.Send(ctx, msg); err != nil {
			s.log.Debug("Observer send failed", logger.Fields(logger.FieldError, err.Error()))
			res.State = StateDisconnected
			res.Err = err
			return res
		}
		res.Delivered++
		s.metrics.FrameDelivered(ctx, s.transport)
	}
}
