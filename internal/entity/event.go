package entity

// EventType is the name of an observability event
type EventType string

const (
	EventIngestionCompleted EventType = "ingestion_completed"
	EventIngestionFailed    EventType = "ingestion_failed"
	EventQueryAnswered      EventType = "query_answered"
	EventRefusalIssued      EventType = "refusal_issued"
	EventProviderLatency    EventType = "provider_latency"
	EventSessionEnded       EventType = "session_ended"
)

// Event is a structured observability record. Data never carries document text.
type Event struct {
	Event     EventType      `json:"event"`
	Timestamp string         `json:"timestamp"` // ISO-8601 UTC
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data"`
}
