package notify

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the type of a lifecycle event
type Kind string

// Event kinds
const (
	KindSessionOpened    Kind = "SESSION_OPENED"
	KindQRUpdated        Kind = "QR_UPDATED"
	KindStatusChanged    Kind = "STATUS_CHANGED"
	KindSessionClosed    Kind = "SESSION_CLOSED"
	KindSessionLoggedOut Kind = "SESSION_LOGGED_OUT"
	KindMediaReceived    Kind = "MEDIA_RECEIVED"
)

// Event is a lifecycle event delivered to webhooks and live listeners
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session"`
	Kind      Kind           `json:"event"`
	Payload   map[string]any `json:"payload,omitempty"`
	Connected bool           `json:"connected"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event with a fresh delivery id
func NewEvent(sessionID string, kind Kind, connected bool, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Payload:   payload,
		Connected: connected,
		Timestamp: time.Now().UTC(),
	}
}
