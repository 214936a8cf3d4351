package adapter

import (
	"context"
)

// Media is a gateway-hosted attachment. Only the reference is kept.
type Media struct {
	URL         string
	ContentType string
}

// Message is one inbound message as normalized by an input adapter.
type Message struct {
	// ID is the gateway's own message id (Twilio MessageSid, Telegram
	// update id). Empty when the gateway has none.
	ID     string
	Source string
	// SenderID is the address replies are sent to on the same gateway.
	SenderID string
	Text     string
	Media    []Media
	Metadata map[string]string
}

// EventHandler is a callback function for handling messages from adapters
// This avoids circular dependencies between adapters and ingress
type EventHandler func(ctx context.Context, msg Message) error

// InputAdapter defines the interface for adapters that receive messages from external platforms
type InputAdapter interface {
	// Name returns the adapter name (e.g. "twilio", "telegram", "cli").
	Name() string

	// Start begins listening for messages (e.g. starts a long-poll).
	// Must respect context cancellation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the adapter.
	Stop(ctx context.Context) error

	// Health checks if the adapter is healthy and connected.
	Health(ctx context.Context) error
}

// OutputAdapter defines the interface for adapters that send replies to external platforms
type OutputAdapter interface {
	// Name returns the adapter name. It matches Message.Source of the input side.
	Name() string

	// Send delivers one text message to recipientID, the gateway address
	// taken from Message.SenderID.
	Send(ctx context.Context, recipientID string, content string) error

	// Health checks if the adapter is healthy and can send messages.
	Health(ctx context.Context) error
}
