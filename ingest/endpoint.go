package ingest

import (
	"context"
	stderrors "errors"
	"io"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	apperrors "github.com/kbukum/pitwall/errors"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/observability"
	"github.com/kbukum/pitwall/telemetry"
)

// StatusStreamEnded is reported in every successful Summary.
const StatusStreamEnded = telemetry.StatusStreamEnded

// Stream is one producer connection. Recv suspends until the next frame
// arrives and returns io.EOF when the producer closes gracefully.
type Stream interface {
	Recv() (telemetry.Frame, error)
}

// Publisher accepts frames for fan-out. *broadcast.Medium[telemetry.Frame]
// satisfies it.
type Publisher interface {
	Publish(f telemetry.Frame) int
}

// Summary is returned to the producer after a graceful close.
type Summary struct {
	TotalCount int64
	Status     string
}

// Endpoint consumes producer streams.
type Endpoint struct {
	pub           Publisher
	log           *logger.Logger
	metrics       *observability.Metrics
	progressEvery int64
	exclusive     bool

	active atomic.Int32
	total  atomic.Uint64
}

// Option configures an Endpoint.
type Option func(*Endpoint)

func WithLogger(log *logger.Logger) Option {
	return func(e *Endpoint) {
		if log != nil {
			e.log = log
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Endpoint) { e.metrics = m }
}

// WithProgressEvery sets the progress log interval. n <= 0 disables it;
// Config uses -1 for that since 0 selects the default.
func WithProgressEvery(n int) Option {
	return func(e *Endpoint) { e.progressEvery = int64(n) }
}

// WithExclusive makes the endpoint reject concurrent producers.
func WithExclusive(exclusive bool) Option {
	return func(e *Endpoint) { e.exclusive = exclusive }
}

// NewEndpoint creates an endpoint publishing to pub.
func NewEndpoint(pub Publisher, opts ...Option) *Endpoint {
	e := &Endpoint{
		pub:           pub,
		log:           logger.Nop(),
		progressEvery: defaultProgressEvery,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithComponent("ingest")
	return e
}

// Consume reads s until it ends. Every decoded frame is published and
// counted whether or not anyone is subscribed. A graceful close yields a
// Summary; any other end yields an error and no Summary.
func (e *Endpoint) Consume(ctx context.Context, s Stream) (Summary, error) {
	if e.exclusive {
		if !e.active.CompareAndSwap(0, 1) {
			e.metrics.StreamEnded(ctx, string(apperrors.ErrCodeConflict))
			return Summary{}, apperrors.Conflict("Another producer stream is already active.")
		}
	} else {
		e.active.Add(1)
	}
	defer e.active.Add(-1)

	ctx, span := observability.StartSpan(ctx, observability.SpanIngestStream)
	defer span.End()

	start := time.Now()
	e.log.Info("Producer connected")

	var count int64
	for {
		frame, err := s.Recv()
		if stderrors.Is(err, io.EOF) {
			summary := Summary{TotalCount: count, Status: StatusStreamEnded}
			e.log.Info("Producer stream ended", logger.DurationFields(map[string]interface{}{
				logger.FieldFrames: count,
				logger.FieldStatus: summary.Status,
			}, time.Since(start)))
			span.SetAttributes(attribute.Int64("pitwall.frames", count))
			e.metrics.StreamEnded(ctx, "ok")
			return summary, nil
		}
		if err != nil {
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Code != apperrors.ErrCodeMalformedFrame {
				appErr = apperrors.StreamAborted(count, err)
			}
			e.log.Warn("Producer stream failed", logger.Fields(
				logger.FieldFrames, count,
				logger.FieldError, appErr.Error(),
			))
			span.SetAttributes(attribute.Int64("pitwall.frames", count))
			span.RecordError(appErr)
			span.SetStatus(otelcodes.Error, string(appErr.Code))
			e.metrics.StreamEnded(ctx, string(appErr.Code))
			return Summary{}, appErr
		}

		e.pub.Publish(frame)
		if e.progressEvery > 0 && count%e.progressEvery == 0 {
			e.log.Info("Broadcasted frame", logger.Fields(
				logger.FieldFrames, count,
				logger.FieldDriverID, frame.DriverID,
			))
		}
		count++
		e.total.Add(1)
		e.metrics.FrameIngested(ctx)
	}
}

// FramesTotal is the number of frames ingested across all streams.
func (e *Endpoint) FramesTotal() uint64 { return e.total.Load() }

// ActiveStreams is the number of producer streams being consumed.
func (e *Endpoint) ActiveStreams() int { return int(e.active.Load()) }
