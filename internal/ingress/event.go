package ingress

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/session"
)

type EventType string

const (
	TypeUserMessage    EventType = "user_message"
	TypeStatusCallback EventType = "status_callback" // Delivery receipts; never reach the engine
)

// Event is the normalized data structure for all inputs.
type Event struct {
	// Identity
	ID         string `json:"id"`          // ULID, doubles as trace id
	ExternalID string `json:"external_id"` // Gateway message id, used for dedupe
	Source     string `json:"source"`      // "twilio", "telegram", "cli", "http"

	// SenderID is the gateway address of the sender; replies go there.
	SenderID string `json:"sender_id"`

	// Classification
	Type EventType `json:"type"`

	// Payload
	Content string             `json:"content"`
	Media   []session.MediaRef `json:"media,omitempty"`

	// Context
	Metadata  map[string]string `json:"metadata"` // e.g. "profile_name": "Maria"
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent creates a normalized event with a fresh ULID.
func NewEvent(source string, eventType EventType, senderID, content string, metadata map[string]string) Event {
	return Event{
		ID:        ulid.Make().String(),
		Source:    source,
		Type:      eventType,
		SenderID:  senderID,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

// FromMessage converts an adapter message into an event.
func FromMessage(msg adapter.Message) Event {
	eventType := TypeUserMessage
	if msg.Metadata["status_callback"] != "" {
		eventType = TypeStatusCallback
	}
	evt := NewEvent(msg.Source, eventType, msg.SenderID, msg.Text, msg.Metadata)
	evt.ExternalID = msg.ID
	for _, m := range msg.Media {
		evt.Media = append(evt.Media, session.MediaRef{URL: m.URL, ContentType: m.ContentType})
	}
	return evt
}

// GenerateIdempotencyKey creates a deterministic key for the event.
func GenerateIdempotencyKey(source, externalID string) string {
	return fmt.Sprintf("%s:%s", source, externalID)
}

// HashKey returns a SHA256 hash of the idempotency key. Keys are persisted
// hashed so the processed-messages file carries no gateway identifiers.
func HashKey(key string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
}
