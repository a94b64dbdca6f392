package interceptor

import (
	"context"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/kbukum/pitwall/logger"
)

func splitMethod(fullMethod string) (service, method string) {
	return path.Dir(fullMethod)[1:], path.Base(fullMethod)
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// UnaryServerLoggingInterceptor logs each unary RPC with method, duration
// and status.
func UnaryServerLoggingInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logResult(log, "gRPC call", info.FullMethod, peerAddr(ctx), time.Since(start), err)
		return resp, err
	}
}

// StreamServerLoggingInterceptor logs stream open and close.
func StreamServerLoggingInterceptor(log *logger.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		service, method := splitMethod(info.FullMethod)
		addr := peerAddr(ss.Context())

		log.Debug("gRPC stream opened", map[string]interface{}{
			"service":        service,
			"method":         method,
			logger.FieldPeer: addr,
			"client_streams": info.IsClientStream,
			"server_streams": info.IsServerStream,
		})

		err := handler(srv, ss)
		logResult(log, "gRPC stream", info.FullMethod, addr, time.Since(start), err)
		return err
	}
}

func logResult(log *logger.Logger, kind, fullMethod, addr string, d time.Duration, err error) {
	service, method := splitMethod(fullMethod)
	fields := map[string]interface{}{
		"service":            service,
		"method":             method,
		logger.FieldPeer:     addr,
		logger.FieldDuration: d.Milliseconds(),
	}
	if err != nil {
		st := status.Convert(err)
		fields[logger.FieldStatus] = st.Code().String()
		fields[logger.FieldError] = st.Message()
		log.Warn(kind+" failed", fields)
		return
	}
	fields[logger.FieldStatus] = "OK"
	log.Debug(kind+" completed", fields)
}

// StreamClientLoggingInterceptor logs stream establishment with method,
// duration and status.
func StreamClientLoggingInterceptor(log *logger.Logger) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		start := time.Now()
		service, methodName := splitMethod(method)

		stream, err := streamer(ctx, desc, cc, method, opts...)

		fields := map[string]interface{}{
			"service":            service,
			"method":             methodName,
			logger.FieldDuration: time.Since(start).Milliseconds(),
			"target":             cc.Target(),
		}
		if err != nil {
			st := status.Convert(err)
			fields[logger.FieldStatus] = st.Code().String()
			fields[logger.FieldError] = st.Message()
			log.Error("gRPC stream failed", fields)
		} else {
			fields[logger.FieldStatus] = "STARTED"
			log.Debug("gRPC stream established", fields)
		}

		return stream, err
	}
}
