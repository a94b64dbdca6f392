// Command pitwall-replay streams frames from a CSV file into a running relay
// and prints the relay's transfer summary.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	grpcx "github.com/kbukum/pitwall/grpc"
	"github.com/kbukum/pitwall/grpc/client"
	"github.com/kbukum/pitwall/grpc/interceptor"
	"github.com/kbukum/pitwall/ingest"
	"github.com/kbukum/pitwall/logger"
	"github.com/kbukum/pitwall/resilience"
)

type options struct {
	file           string
	host           string
	port           int
	interval       time.Duration
	rate           float64
	connectTimeout time.Duration
	attempts       int
	logLevel       string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pitwall-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var o options
	fs := pflag.NewFlagSet("pitwall-replay", pflag.ContinueOnError)
	fs.StringVarP(&o.file, "file", "f", "-", "CSV file to replay, - for stdin")
	fs.StringVar(&o.host, "host", "127.0.0.1", "relay ingest host")
	fs.IntVar(&o.port, "port", 50051, "relay ingest port")
	fs.DurationVar(&o.interval, "interval", 0, "pause between frames, e.g. 16ms")
	fs.Float64Var(&o.rate, "rate", 0, "frames per second; ignored when --interval is set")
	fs.DurationVar(&o.connectTimeout, "connect-timeout", 5*time.Second, "stream establishment timeout per attempt")
	fs.IntVar(&o.attempts, "attempts", 5, "stream establishment attempts")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := logger.New(&logger.Config{Level: o.logLevel, Format: logger.FormatConsole, Output: "stderr", Timestamp: true}, "pitwall-replay")

	in, err := openInput(o.file)
	if err != nil {
		return err
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := client.NewClient(grpcx.Config{Host: o.host, Port: o.port}, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	return replay(ctx, ingest.NewTelemetryClient(conn), newFrameReader(in), o, log)
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func replay(ctx context.Context, tc *ingest.TelemetryClient, frames *frameReader, o options, log *logger.Logger) error {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = o.attempts
	retry.RetryIf = interceptor.IsRetryable
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Warn("Opening stream failed, retrying", logger.Fields("attempt", attempt, "backoff", backoff.String(), logger.FieldError, err.Error()))
	}

	stream, err := resilience.Retry(ctx, retry, func() (*ingest.TelemetryStream, error) {
		return client.OpenStreamWithTimeout(ctx, o.connectTimeout, func(ctx context.Context) (*ingest.TelemetryStream, error) {
			return tc.StreamTelemetry(ctx)
		})
	})
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	rate := o.rate
	if o.interval > 0 {
		rate = float64(time.Second) / float64(o.interval)
	}
	pacer := resilience.NewPacer(rate, 1)

	start := time.Now()
	sent := 0
	for {
		f, err := frames.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		if err := stream.Send(f); err != nil {
			// The server ended the stream; its status arrives on CloseAndRecv.
			log.Warn("Send failed", logger.Fields(logger.FieldFrames, sent, logger.FieldError, err.Error()))
			break
		}
		sent++
	}

	summary, err := stream.CloseAndRecv()
	if err != nil {
		return fmt.Errorf("stream ended after %d frames: %w", sent, err)
	}
	log.Info("Replay finished", logger.DurationFields(logger.Fields(
		logger.FieldFrames, sent,
		"total_packets", summary.TotalPackets,
		logger.FieldStatus, summary.Status,
	), time.Since(start)))
	fmt.Printf("total_packets=%d status=%q\n", summary.TotalPackets, summary.Status)
	return nil
}
