package interceptor

import (
	"context"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kbukum/pitwall/logger"
)

// UnaryServerRecoveryInterceptor converts a handler panic into Internal.
func UnaryServerRecoveryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recovered(log, info.FullMethod, r)
			}
		}()
		return handler(ctx, req)
	}
}

// StreamServerRecoveryInterceptor converts a handler panic into Internal.
func StreamServerRecoveryInterceptor(log *logger.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = recovered(log, info.FullMethod, r)
			}
		}()
		return handler(srv, ss)
	}
}

func recovered(log *logger.Logger, method string, r interface{}) error {
	log.Error("Panic recovered in gRPC handler", map[string]interface{}{
		"method": method,
		"panic":  r,
		"stack":  string(debug.Stack()),
	})
	return status.Error(codes.Internal, "An unexpected error occurred.")
}
