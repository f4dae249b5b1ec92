package framesource

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrorType represents the category of a frame server failure
type ErrorType int

const (
	// ErrTypeNetwork indicates a transport failure (refused, reset, unreachable)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates the bounded wait elapsed
	ErrTypeTimeout
	// ErrTypeHTTP indicates a non-2xx control response
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed control response
	ErrTypeParse
	// ErrTypeClosed indicates the session was closed
	ErrTypeClosed
	// ErrTypeProtocol indicates a caller contract violation (e.g. double return)
	ErrTypeProtocol
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeClosed:
		return "Closed"
	case ErrTypeProtocol:
		return "Protocol Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// SourceError is returned by every Client operation.
type SourceError struct {
	Type       ErrorType
	Op         string // Operation, e.g. "get_frame", "set_source"
	Message    string
	StatusCode int // HTTP status code (ErrTypeHTTP only)
	Err        error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s (caused by: %v)", e.Op, e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *SourceError) Unwrap() error {
	return e.Err
}

// ErrClosed is wrapped by operations on a closed session.
var ErrClosed = errors.New("frame source closed")

// newTransportError classifies a transport error as timeout or network.
func newTransportError(op, message string, err error) *SourceError {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &SourceError{Type: ErrTypeTimeout, Op: op, Message: message, Err: err}
	}
	return &SourceError{Type: ErrTypeNetwork, Op: op, Message: message, Err: err}
}

func newHTTPError(op string, statusCode int, body string) *SourceError {
	return &SourceError{
		Type:       ErrTypeHTTP,
		Op:         op,
		Message:    fmt.Sprintf("status %d: %s", statusCode, body),
		StatusCode: statusCode,
	}
}

func newParseError(op string, err error) *SourceError {
	return &SourceError{Type: ErrTypeParse, Op: op, Message: "malformed response", Err: err}
}

func newClosedError(op string) *SourceError {
	return &SourceError{Type: ErrTypeClosed, Op: op, Message: "session closed", Err: ErrClosed}
}

func errorType(err error) (ErrorType, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Type, true
	}
	return 0, false
}

// IsTimeout reports whether err is a bounded-wait expiry.
func IsTimeout(err error) bool {
	if t, ok := errorType(err); ok {
		return t == ErrTypeTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeNetwork
}

// IsHTTPError reports whether err is a non-2xx control response.
func IsHTTPError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrTypeHTTP
}

// IsClosed reports whether err comes from a closed session.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
