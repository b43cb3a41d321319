package models

import (
	"errors"
	"fmt"
)

// Error kinds carried to the HTTP layer. Each maps to a status code and a
// stable machine-readable "error" field in the response body.
const (
	ErrKindValidation  = "validation_failed"
	ErrKindReadiness   = "readiness_not_met"
	ErrKindLLMInvalid  = "llm_invalid"
	ErrKindSizeLimit   = "size_limit_exceeded"
	ErrKindStage       = "stage_violation"
	ErrKindNotFound    = "not_found"
	ErrKindRenderer    = "renderer_failed"
	ErrKindInternal    = "internal"
	ErrKindBadRequest  = "bad_request"
	ErrKindConflict    = "version_conflict"
	ErrKindUnavailable = "provider_unavailable"
)

// Sentinel errors for flow control inside the services
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrVersionConflict = errors.New("version conflict")
	ErrBlobNotFound    = errors.New("blob not found")
)

// AppError is the typed error every service returns upward. Kind selects
// the taxonomy bucket; Suggestion tells the caller what to do next.
type AppError struct {
	Kind       string      `json:"error"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

// NewAppError builds an AppError with a kind and message
func NewAppError(kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails attaches structured detail payload
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithSuggestion attaches a human-facing next step
func (e *AppError) WithSuggestion(s string) *AppError {
	e.Suggestion = s
	return e
}

// AsAppError extracts an AppError from an error chain, wrapping unknown
// errors as internal.
func AsAppError(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrBlobNotFound):
		return NewAppError(ErrKindNotFound, err.Error()).WithCause(err)
	case errors.Is(err, ErrVersionConflict):
		return NewAppError(ErrKindConflict, "session was modified concurrently").
			WithSuggestion("reload the session and retry").WithCause(err)
	}
	return NewAppError(ErrKindInternal, "internal error").WithCause(err)
}

// SizeLimitError reports a property that could not be persisted even after
// offload and shrink.
type SizeLimitError struct {
	Property string `json:"property"`
	Bytes    int    `json:"bytes"`
	Limit    int    `json:"limit"`
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("property %q is %d bytes, limit %d", e.Property, e.Bytes, e.Limit)
}

// ValidationIssue is one structured finding from the CV validator
type ValidationIssue struct {
	FieldPath  string `json:"field_path"`
	Current    int    `json:"current"`
	Limit      int    `json:"limit"`
	Excess     int    `json:"excess,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// LLMInvalidError carries the raw model text when schema repair failed
type LLMInvalidError struct {
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
	RawText string `json:"raw_text,omitempty"`
}

func (e *LLMInvalidError) Error() string {
	return fmt.Sprintf("llm output invalid for stage %s: %s", e.Stage, e.Reason)
}
