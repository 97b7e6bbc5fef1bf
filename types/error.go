package types

import "fmt"

// ErrorCode is a unified error code across the engine.
type ErrorCode string

const (
	ErrWorkflowNotFound ErrorCode = "WORKFLOW_NOT_FOUND"
	ErrAgentNotFound    ErrorCode = "AGENT_NOT_FOUND"
	ErrStepFailed       ErrorCode = "STEP_FAILED"
	ErrCycleDetected    ErrorCode = "CYCLE_DETECTED"
	ErrExecutionFailed  ErrorCode = "EXECUTION_FAILED"
	ErrInvalidWorkflow  ErrorCode = "INVALID_WORKFLOW"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrProviderError    ErrorCode = "PROVIDER_ERROR"
	ErrStoreError       ErrorCode = "STORE_ERROR"
)

// Error is a structured error with a code, a user-facing message, and an
// optional wrapped cause. The message alone is what callers and real-time
// subscribers see; codes drive taxonomy decisions (retry, abort).
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface. The message is returned verbatim so
// surfaced step errors keep their original text.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates an Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches a wrapped cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err carries a retryable marker.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code, or "" for plain errors.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
