package events

import (
	"context"
	"time"
)

const (
	TypeDocumentIndexed     = "DOCUMENT_INDEXED"
	TypeConversationStarted = "CONVERSATION_STARTED"
	TypeConversationEnded   = "CONVERSATION_ENDED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "DOCUMENT_INDEXED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

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

func newEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func DocumentIndexed(userID, filename string, passages, total int) Event {
	return newEvent(TypeDocumentIndexed, map[string]interface{}{
		"user_id":  userID,
		"filename": filename,
		"passages": passages,
		"total":    total,
	})
}

func ConversationStarted(userID string) Event {
	return newEvent(TypeConversationStarted, map[string]interface{}{"user_id": userID})
}

func ConversationEnded(userID string) Event {
	return newEvent(TypeConversationEnded, map[string]interface{}{"user_id": userID})
}

// Publisher delivers events to a bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
