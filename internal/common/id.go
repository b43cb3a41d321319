package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a unique session ID.
// Format: plain UUID v4, stable for the lifetime of the session.
func NewSessionID() string {
	return uuid.New().String()
}

// NewTraceID generates a per-request trace ID with the "trc_" prefix
func NewTraceID() string {
	return "trc_" + uuid.New().String()
}
