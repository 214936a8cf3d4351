package ingress

import (
	"context"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
)

// Resolver maps an event to the session key the engine serializes on.
type Resolver interface {
	ResolveSender(ctx context.Context, event *Event) (string, error)
}

// StandardResolver namespaces sender addresses by gateway so two gateways
// can never share a session. WhatsApp addresses already carry their channel
// prefix and are kept as-is.
type StandardResolver struct{}

func NewStandardResolver() *StandardResolver {
	return &StandardResolver{}
}

func (r *StandardResolver) ResolveSender(ctx context.Context, event *Event) (string, error) {
	if event == nil {
		return "", ouvErrors.InvalidInput("event is nil")
	}
	sender := strings.TrimSpace(event.SenderID)
	if sender == "" {
		return "", ouvErrors.InvalidInput("event has no sender")
	}

	switch event.Source {
	case "twilio":
		return sender, nil
	case "":
		return "", ouvErrors.InvalidInput("event has no source")
	default:
		prefix := event.Source + ":"
		if strings.HasPrefix(sender, prefix) {
			return sender, nil
		}
		return prefix + sender, nil
	}
}
