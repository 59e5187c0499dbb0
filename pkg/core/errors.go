package core

import (
	"fmt"
)

// Error represents an API error.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrValidation is bad client input. Mapped to 400, never retried.
	ErrValidation ErrorType = "validation_error"
	// ErrUpstreamTimeout means the run outlived the internal deadline budget.
	// A partial-result salvage is attempted before this surfaces. Mapped to 408.
	ErrUpstreamTimeout ErrorType = "upstream_timeout"
	// ErrUpstreamFailure means the provider run ended failed/cancelled/expired.
	ErrUpstreamFailure ErrorType = "upstream_failure"
	// ErrProtocol means the tool-output handshake was violated (malformed
	// arguments, missing submission). Resolved with a neutral output, not a crash.
	ErrProtocol ErrorType = "protocol_violation"
	// ErrTransportClosed means the client disconnected mid-stream. Swallowed.
	ErrTransportClosed ErrorType = "transport_closed"
	// ErrAuthentication is a missing or invalid API key.
	ErrAuthentication ErrorType = "authentication_error"
	// ErrRateLimit is a per-principal limit rejection.
	ErrRateLimit ErrorType = "rate_limit_error"
	// ErrAPI is any other internal or provider-side failure.
	ErrAPI ErrorType = "api_error"
)

// NewValidationError creates a validation error.
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
	}
}

// NewValidationErrorWithParam creates a validation error with a parameter.
func NewValidationErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
		Param:   param,
	}
}

// NewUpstreamTimeoutError creates an upstream timeout error.
func NewUpstreamTimeoutError(message string) *Error {
	return &Error{
		Type:    ErrUpstreamTimeout,
		Message: message,
		Code:    "run_deadline",
	}
}

// NewUpstreamFailureError creates a terminal upstream failure error.
// status is the run status that ended the turn (failed, cancelled, expired).
func NewUpstreamFailureError(message, status string) *Error {
	return &Error{
		Type:    ErrUpstreamFailure,
		Message: message,
		Code:    status,
	}
}

// NewProtocolError creates a tool-protocol violation error.
func NewProtocolError(message string) *Error {
	return &Error{
		Type:    ErrProtocol,
		Message: message,
	}
}

// NewTransportClosedError creates a transport-closed error.
func NewTransportClosedError(message string) *Error {
	return &Error{
		Type:    ErrTransportClosed,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *Error {
	return &Error{
		Type:    ErrRateLimit,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsTerminalForTurn reports whether the error ends the turn with no retry.
func (e *Error) IsTerminalForTurn() bool {
	switch e.Type {
	case ErrUpstreamFailure, ErrValidation, ErrTransportClosed:
		return true
	default:
		return false
	}
}
