package types

import (
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies failures so callers can decide between retrying,
// reconnecting, and surfacing the error to the user.
type ErrorKind int

const (
	ErrKindTransient ErrorKind = iota
	ErrKindConnection
	ErrKindParse
	ErrKindCapability
	ErrKindOrderState
	ErrKindConfig
	ErrKindRetryExhausted
)

// String implements fmt.Stringer for ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindTransient:
		return "transient"
	case ErrKindConnection:
		return "connection"
	case ErrKindParse:
		return "parse"
	case ErrKindCapability:
		return "capability"
	case ErrKindOrderState:
		return "order_state"
	case ErrKindConfig:
		return "config"
	case ErrKindRetryExhausted:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

// Error is the error type used across the trading core.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error with the given kind, wrapping cause (may be nil).
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Errorf builds an Error with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or ok=false when err is not
// an *Error anywhere in its chain.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

// IsTransient reports whether err is worth retrying: either explicitly
// classified transient/connection, or a network timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if kind, ok := KindOf(err); ok {
		return kind == ErrKindTransient || kind == ErrKindConnection
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}
