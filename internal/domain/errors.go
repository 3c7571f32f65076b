// Package domain provides the canonical session, event, and error types shared
// by the decoder, the mode controller, and the session orchestrator.
package domain

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of a client-side failure.
type ErrorType string

const (
	// ErrorTypeDecode indicates a malformed stream line. Decode errors are
	// recovered locally and never abort a stream.
	ErrorTypeDecode ErrorType = "decode"

	// ErrorTypeProtocol indicates the backend reported a failure, either as an
	// explicit error event or as a non-2xx response.
	ErrorTypeProtocol ErrorType = "protocol"

	// ErrorTypeTransport indicates a connection or network failure.
	ErrorTypeTransport ErrorType = "transport"

	// ErrorTypeUserInput indicates empty or invalid local input.
	ErrorTypeUserInput ErrorType = "user_input"

	// ErrorTypeInvalidState indicates the operation does not match the
	// current turn state or game mode.
	ErrorTypeInvalidState ErrorType = "invalid_state"

	// ErrorTypeBusy indicates a conflicting exchange is still outstanding.
	ErrorTypeBusy ErrorType = "busy"
)

// Sentinels for errors.Is comparisons. Any *Error with the same Type matches.
var (
	ErrDecode       = &Error{Type: ErrorTypeDecode}
	ErrProtocol     = &Error{Type: ErrorTypeProtocol}
	ErrTransport    = &Error{Type: ErrorTypeTransport}
	ErrUserInput    = &Error{Type: ErrorTypeUserInput}
	ErrInvalidState = &Error{Type: ErrorTypeInvalidState}
	ErrBusy         = &Error{Type: ErrorTypeBusy}
)

// Error is the canonical client error.
type Error struct {
	// Type is the category of error
	Type ErrorType

	// Op names the operation that failed (start, ask, hint, save, ...)
	Op string

	// Message is the human-readable error message
	Message string

	// Err is the underlying cause, if any
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Type, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// Text returns the message to show the user, falling back to the cause.
func (e *Error) Text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Type)
}

// NewError creates a new client error.
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// WithOp sets the operation name.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// WithCause sets the underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// IsType reports whether err is, or wraps, an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// Convenience constructors

// ErrMalformedLine reports a structured stream line that could not be
// decoded. The line itself is still displayed as a system note.
func ErrMalformedLine(cause error) *Error {
	return NewError(ErrorTypeDecode, "malformed stream line").WithOp("decode").WithCause(cause)
}

// ErrTransportFailure wraps a network failure.
func ErrTransportFailure(op string, err error) *Error {
	return NewError(ErrorTypeTransport, "").WithOp(op).WithCause(err)
}

// ErrProtocolFailure creates a backend-reported failure.
func ErrProtocolFailure(op, message string) *Error {
	return NewError(ErrorTypeProtocol, message).WithOp(op)
}

// ErrInvalidUserInput rejects local input before any request is issued.
func ErrInvalidUserInput(op, message string) *Error {
	return NewError(ErrorTypeUserInput, message).WithOp(op)
}

// ErrWrongState rejects an operation that does not match the turn state.
func ErrWrongState(op string, state TurnState) *Error {
	return NewError(ErrorTypeInvalidState, fmt.Sprintf("not allowed while %s", state)).WithOp(op)
}

// ErrOutstanding rejects re-entrant submission.
func ErrOutstanding(op string) *Error {
	return NewError(ErrorTypeBusy, "a conflicting request is still outstanding").WithOp(op)
}
