package ingest

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/kbukum/pitwall/telemetry"
)

// TelemetryClient is the client API for f1.F1TelemetryService. The
// connection must use grpcx.Codec, which client.NewClient installs.
type TelemetryClient struct {
	cc grpc.ClientConnInterface
}

func NewTelemetryClient(cc grpc.ClientConnInterface) *TelemetryClient {
	return &TelemetryClient{cc: cc}
}

// StreamTelemetry opens the client stream.
func (c *TelemetryClient) StreamTelemetry(ctx context.Context, opts ...grpc.CallOption) (*TelemetryStream, error) {
	cs, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethodStreamTelemetry, opts...)
	if err != nil {
		return nil, err
	}
	return &TelemetryStream{cs: cs}, nil
}

// TelemetryStream sends frames and receives the final summary.
type TelemetryStream struct {
	cs grpc.ClientStream
}

func (s *TelemetryStream) Send(f telemetry.Frame) error {
	return s.cs.SendMsg(f.Data())
}

// SendRaw sends an already-encoded TelemetryData payload.
func (s *TelemetryStream) SendRaw(b []byte) error {
	return s.cs.SendMsg(b)
}

// CloseAndRecv half-closes the stream and waits for the summary.
func (s *TelemetryStream) CloseAndRecv() (telemetry.TransferSummary, error) {
	var summary telemetry.TransferSummary
	if err := s.cs.CloseSend(); err != nil {
		return summary, fmt.Errorf("closing send: %w", err)
	}
	if err := s.cs.RecvMsg(&summary); err != nil {
		return summary, err
	}
	return summary, nil
}
