package events

import "time"

// Event type codes published on the cluster bus.
const (
	TypeIndexCompleted = "INDEX_COMPLETED"
	TypeIndexCleared   = "INDEX_CLEARED"
	TypeAuthSucceeded  = "AUTH_SUCCEEDED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "INDEX_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic implementation used by publishers and
// reconstructed by subscribers.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// IndexCompleted builds the event emitted after a batch indexing job finishes.
func IndexCompleted(subjectId, workspaceId string, indexed, failed int) Event {
	return BaseEvent{
		Type: TypeIndexCompleted,
		Data: map[string]interface{}{
			"subject_id":   subjectId,
			"workspace_id": workspaceId,
			"indexed":      indexed,
			"failed":       failed,
		},
		OccurredAt: time.Now(),
	}
}

// IndexCleared builds the event emitted after a namespace purge.
func IndexCleared(subjectId, workspaceId string, deleted int64) Event {
	return BaseEvent{
		Type: TypeIndexCleared,
		Data: map[string]interface{}{
			"subject_id":   subjectId,
			"workspace_id": workspaceId,
			"deleted":      deleted,
		},
		OccurredAt: time.Now(),
	}
}

// AuthSucceeded builds the audit event for a session authentication.
func AuthSucceeded(subjectId, sessionId string) Event {
	return BaseEvent{
		Type: TypeAuthSucceeded,
		Data: map[string]interface{}{
			"subject_id": subjectId,
			"session_id": sessionId,
		},
		OccurredAt: time.Now(),
	}
}
