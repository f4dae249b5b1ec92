package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure
type Kind int

const (
	// KindUnbound means the operation needs a frame source and none is bound
	KindUnbound Kind = iota
	// KindAlreadyBound means a bind was attempted while a source is bound
	KindAlreadyBound
	// KindBadInput means a request parameter was malformed or too long
	KindBadInput
	// KindUpstream means the frame source or name resolution failed
	KindUpstream
	// KindTimeout means a bounded wait on the frame source elapsed
	KindTimeout
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindUnbound:
		return "Unbound"
	case KindAlreadyBound:
		return "Already Bound"
	case KindBadInput:
		return "Bad Input"
	case KindUpstream:
		return "Upstream Failure"
	case KindTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// StatusCode maps the kind to the HTTP status of a control response.
func (k Kind) StatusCode() int {
	switch k {
	case KindUnbound, KindAlreadyBound:
		return http.StatusForbidden
	case KindBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is returned by gateway operations
type Error struct {
	Kind Kind
	Op   string // Operation, e.g. "set_source", "bind"
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	errUnbound      = errors.New("no frame source bound")
	errAlreadyBound = errors.New("frame source already bound")
)

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func kindOf(err error) (Kind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return 0, false
}

// IsUnbound reports whether err is an Unbound failure
func IsUnbound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUnbound
}

// IsAlreadyBound reports whether err is an AlreadyBound failure
func IsAlreadyBound(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindAlreadyBound
}

// IsBadInput reports whether err is a BadInput failure
func IsBadInput(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindBadInput
}

// IsUpstream reports whether err is an upstream failure, timeouts included
func IsUpstream(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == KindUpstream || k == KindTimeout)
}

// IsTimeout reports whether err is a bounded-wait expiry
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTimeout
}
