package models

import "time"

// EventType identifies a broadcast event category
type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventStageChanged   EventType = "stage.changed"
	EventFieldUpdated   EventType = "field.updated"
	EventProposalReady  EventType = "proposal.ready"
	EventPDFGenerated   EventType = "pdf.generated"
	EventSessionExpired EventType = "session.expired"
	EventLLMCall        EventType = "llm.call"
	EventErrorOccurred  EventType = "error"
)

// Event is the payload delivered to subscribers and websocket clients
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
