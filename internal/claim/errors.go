package claim

import (
	"errors"
	"fmt"
)

// ErrorKind tags why an upload flow stopped.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindBusy              ErrorKind = "busy"
	KindBackendStatus     ErrorKind = "backend_status"
	KindTransport         ErrorKind = "transport"
	KindStreamUnsupported ErrorKind = "stream_unsupported"
	KindDecode            ErrorKind = "decode"
)

// User-facing alert texts.
const (
	MsgNoImage    = "Please select or drop an image first."
	MsgBusy       = "An upload is already in progress."
	MsgToast      = "Your claim is under review and will be assigned shortly"
	MsgNoStream   = "ReadableStream not supported."
	MsgAgentError = "Agent processing failed"
)

// FlowError is the tagged error carried out of an upload flow.
type FlowError struct {
	Kind    ErrorKind
	Op      string
	Status  int
	Details string
	Cause   error
}

func (e *FlowError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Details)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a FlowError without a cause.
func NewError(kind ErrorKind, op, details string) *FlowError {
	return &FlowError{Kind: kind, Op: op, Details: details}
}

// StatusError creates a backend_status error for a non-success response.
func StatusError(op string, status int, details string) *FlowError {
	return &FlowError{Kind: KindBackendStatus, Op: op, Status: status, Details: details}
}

// Wrap tags err unless it already carries a FlowError, which is returned as is.
func Wrap(kind ErrorKind, op, details string, err error) *FlowError {
	if err == nil {
		return nil
	}
	var typed *FlowError
	if errors.As(err, &typed) {
		return typed
	}
	return &FlowError{Kind: kind, Op: op, Details: details, Cause: err}
}

// IsKind reports whether err carries a FlowError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var typed *FlowError
	if errors.As(err, &typed) {
		return typed.Kind == kind
	}
	return false
}

// Result carries either a value or a tagged error.
type Result[T any] struct {
	Value T
	Err   *FlowError
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a tagged error.
func Fail[T any](err *FlowError) Result[T] {
	return Result[T]{Err: err}
}

// Unwrap converts the result into the usual value, error pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		return r.Value, r.Err
	}
	return r.Value, nil
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool {
	return r.Err == nil
}
