// ABOUTME: Typed wire errors with stable error codes shared by all peers.
// ABOUTME: Classifies transport, protocol, agent, and registry failures.

package protocol

import (
	"errors"
	"fmt"
)

// Code is a stable, wire-visible error classification.
type Code string

// Error codes carried in error envelopes and returned by this layer.
const (
	CodeConnectionFailed    Code = "CONNECTION_FAILED"
	CodeConnectionTimeout   Code = "CONNECTION_TIMEOUT"
	CodeConnectionClosed    Code = "CONNECTION_CLOSED"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeUnsupportedVersion  Code = "UNSUPPORTED_VERSION"
	CodeMalformedPayload    Code = "MALFORMED_PAYLOAD"
	CodeAgentNotFound       Code = "AGENT_NOT_FOUND"
	CodeAgentUnavailable    Code = "AGENT_UNAVAILABLE"
	CodeAgentTimeout        Code = "AGENT_TIMEOUT"
	CodeAgentError          Code = "AGENT_ERROR"
	CodeToolNotFound        Code = "TOOL_NOT_FOUND"
	CodeToolExecutionFailed Code = "TOOL_EXECUTION_FAILED"
	CodeRegistrationFailed  Code = "REGISTRATION_FAILED"
	CodeDuplicateAgent      Code = "DUPLICATE_AGENT"
)

// Error is a classified failure. It travels in error envelopes and is the
// error type surfaced by RemoteAgent calls.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

// NewError creates an Error with the given code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error wrapping an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	if cause != nil && message == "" {
		message = cause.Error()
	}
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail returns the error with the given detail attached.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the Code from err, or "" if err is not a wire error.
func CodeOf(err error) Code {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// IsConnectionError reports whether err is a transport-class failure.
func IsConnectionError(err error) bool {
	switch CodeOf(err) {
	case CodeConnectionFailed, CodeConnectionTimeout, CodeConnectionClosed:
		return true
	}
	return false
}

// IsProtocolError reports whether err is a malformed- or
// unsupported-envelope failure.
func IsProtocolError(err error) bool {
	switch CodeOf(err) {
	case CodeInvalidMessage, CodeUnsupportedVersion, CodeMalformedPayload:
		return true
	}
	return false
}

// RemoteExecutionError indicates the remote agent's Process call failed.
// The agent name and the remote error text are preserved.
type RemoteExecutionError struct {
	AgentName string
	Err       *Error
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("agent %q: remote execution failed: %s", e.AgentName, e.Err.Message)
}

// Unwrap exposes the classified wire error.
func (e *RemoteExecutionError) Unwrap() error {
	return e.Err
}
