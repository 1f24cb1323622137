package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limit exceeded")

	// ErrActionExpired is returned when a pending confirmation id is unknown,
	// already resolved, or past its TTL.
	ErrActionExpired = errors.New("action expired or unknown")

	// ErrLoopBoundExceeded is returned when the model keeps requesting tools
	// past the configured round limit.
	ErrLoopBoundExceeded = errors.New("tool loop bound exceeded")

	// ErrToolCrashed is returned when a tool executor panics. Unlike a
	// ToolError it is fatal for the stream.
	ErrToolCrashed = errors.New("tool executor crashed")
)

// Tool error codes fed back to the model.
const (
	ToolErrValidation = "validation_error"
	ToolErrGuardrail  = "guardrail_rejected"
	ToolErrNotFound   = "not_found"
	ToolErrExecutor   = "executor_error"
	ToolErrUnknown    = "unknown_tool"
)

// ToolError is a recoverable tool failure. It is serialized into the tool
// result so the model can adjust its next call or explain the failure.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is match validation failures against ErrValidation and
// not-found failures against ErrNotFound.
func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Code == ToolErrValidation || e.Code == ToolErrGuardrail
	case ErrNotFound:
		return e.Code == ToolErrNotFound
	}
	return false
}

// NewToolError builds a ToolError with a formatted message.
func NewToolError(code, format string, args ...interface{}) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// TransportError wraps a failure talking to the model backend (unreachable,
// timeout, malformed stream). It is fatal for the current stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model backend %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusCode implements HTTPError
func (e *TransportError) StatusCode() int { return http.StatusBadGateway }

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string
	ResourceType string
	ResourceID   string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
