package grpc

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/kbukum/pitwall/errors"
)

// FromGRPC converts a gRPC error to an AppError.
func FromGRPC(err error, serviceName string) *apperrors.AppError {
	if err == nil {
		return nil
	}

	// Check connection errors first (before extracting status)
	if IsConnectionError(err) {
		return apperrors.ServiceUnavailable(serviceName).WithCause(err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return apperrors.Internal(err)
	}

	switch st.Code() {
	case codes.Unavailable:
		return apperrors.ServiceUnavailable(serviceName).WithCause(err)

	case codes.DeadlineExceeded:
		return apperrors.Timeout(serviceName).WithCause(err)

	case codes.InvalidArgument:
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeMalformedFrame,
			Message:    st.Message(),
			HTTPStatus: http.StatusBadRequest,
			Retryable:  false,
		}).WithCause(err)

	case codes.PermissionDenied:
		return apperrors.Forbidden("").WithCause(err)

	case codes.FailedPrecondition:
		return apperrors.Conflict(st.Message()).WithCause(err)

	case codes.Aborted, codes.Canceled:
		return (&apperrors.AppError{
			Code:       apperrors.ErrCodeStreamAborted,
			Message:    st.Message(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
		}).WithCause(err)

	default:
		return apperrors.Internal(err)
	}
}

// ToGRPCStatus converts an error to a gRPC status error. AppErrors map by
// code; a bare context error maps to Canceled or DeadlineExceeded.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		if _, isStatus := status.FromError(err); isStatus {
			return err
		}
		switch {
		case stderrors.Is(err, context.Canceled):
			return status.Error(codes.Canceled, err.Error())
		case stderrors.Is(err, context.DeadlineExceeded):
			return status.Error(codes.DeadlineExceeded, err.Error())
		}
		return status.Error(codes.Internal, "An unexpected error occurred.")
	}

	var code codes.Code
	switch appErr.Code {
	case apperrors.ErrCodeMalformedFrame, apperrors.ErrCodeInvalidInput:
		code = codes.InvalidArgument
	case apperrors.ErrCodeForbidden:
		code = codes.PermissionDenied
	case apperrors.ErrCodeConflict:
		code = codes.FailedPrecondition
	case apperrors.ErrCodeStreamAborted:
		code = codes.Aborted
		if stderrors.Is(appErr.Cause, context.Canceled) {
			code = codes.Canceled
		}
	case apperrors.ErrCodeTimeout:
		code = codes.DeadlineExceeded
	case apperrors.ErrCodeServiceUnavailable:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}

	return status.Error(code, appErr.Message)
}

// IsConnectionError checks if a gRPC error is a connection-level failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"no such host",
		"transport is closing",
		"connection closed",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
