package ingest

import (
	"google.golang.org/grpc"

	apperrors "github.com/kbukum/pitwall/errors"
	grpcx "github.com/kbukum/pitwall/grpc"
	"github.com/kbukum/pitwall/telemetry"
)

// Fully-qualified names from proto/f1.proto.
const (
	ServiceName               = "f1.F1TelemetryService"
	MethodStreamTelemetry     = "StreamTelemetry"
	FullMethodStreamTelemetry = "/" + ServiceName + "/" + MethodStreamTelemetry
)

// TelemetryServer is the server API for f1.F1TelemetryService.
type TelemetryServer interface {
	StreamTelemetry(stream grpc.ServerStream) error
}

// ServiceDesc describes f1.F1TelemetryService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TelemetryServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodStreamTelemetry,
			Handler:       streamTelemetryHandler,
			ClientStreams: true,
		},
	},
	Metadata: "f1.proto",
}

func streamTelemetryHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(TelemetryServer).StreamTelemetry(stream)
}

// GRPCHandler binds an Endpoint to the StreamTelemetry RPC.
type GRPCHandler struct {
	endpoint *Endpoint
}

var _ TelemetryServer = (*GRPCHandler)(nil)

func NewGRPCHandler(e *Endpoint) *GRPCHandler {
	return &GRPCHandler{endpoint: e}
}

// StreamTelemetry consumes the client stream and replies with exactly one
// of a TransferSummary or a status error.
func (h *GRPCHandler) StreamTelemetry(ss grpc.ServerStream) error {
	summary, err := h.endpoint.Consume(ss.Context(), &serverStream{ss: ss})
	if err != nil {
		return grpcx.ToGRPCStatus(err)
	}
	return ss.SendMsg(telemetry.TransferSummary{
		TotalPackets: int32(summary.TotalCount),
		Status:       summary.Status,
	})
}

// serverStream decodes raw protobuf payloads delivered by grpcx.Codec.
type serverStream struct {
	ss  grpc.ServerStream
	seq int64
}

func (s *serverStream) Recv() (telemetry.Frame, error) {
	var raw []byte
	if err := s.ss.RecvMsg(&raw); err != nil {
		return telemetry.Frame{}, err
	}
	var msg telemetry.TelemetryData
	if err := msg.Unmarshal(raw); err != nil {
		return telemetry.Frame{}, apperrors.MalformedFrame(s.seq, err)
	}
	s.seq++
	return msg.Frame(), nil
}
