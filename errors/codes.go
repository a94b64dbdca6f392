package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the component is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Stream errors
const (
	// ErrCodeMalformedFrame indicates an inbound telemetry message could not be decoded.
	ErrCodeMalformedFrame ErrorCode = "MALFORMED_FRAME"
	// ErrCodeStreamAborted indicates the producer stream broke before a graceful close.
	ErrCodeStreamAborted ErrorCode = "STREAM_ABORTED"
	// ErrCodeLagged indicates a subscriber fell further behind than the ring retains.
	ErrCodeLagged ErrorCode = "LAGGED"
	// ErrCodeConflict indicates the request conflicts with current state
	// (for example a second producer while exclusive ingest is active).
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeForbidden indicates the request is not allowed (e.g. origin rejected).
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeStreamAborted:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
