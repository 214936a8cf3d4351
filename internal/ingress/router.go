package ingress

import (
	"context"
	"strings"
	"sync"
)

// Destination represents the target of a routed event.
type DestinationType int

const (
	DestPipeline DestinationType = iota // Continue to the intake engine
	DestDrop                            // Drop the event
)

type Destination struct {
	Type   DestinationType
	Reason string
}

// Router determines the destination of an event.
type Router interface {
	Route(ctx context.Context, event *Event) Destination
}

// StandardRouter drops delivery receipts and messages the bot sent itself,
// which some gateways echo back to the webhook.
type StandardRouter struct {
	ignored map[string]struct{}
	mu      sync.RWMutex
}

func NewStandardRouter() *StandardRouter {
	return &StandardRouter{
		ignored: make(map[string]struct{}),
	}
}

func (r *StandardRouter) Route(ctx context.Context, event *Event) Destination {
	if event.Type == TypeStatusCallback {
		return Destination{Type: DestDrop, Reason: "status callback"}
	}

	r.mu.RLock()
	_, ignored := r.ignored[strings.TrimSpace(event.SenderID)]
	r.mu.RUnlock()
	if ignored {
		return Destination{Type: DestDrop, Reason: "own address"}
	}

	return Destination{Type: DestPipeline}
}

// IgnoreSender drops every future event from id.
func (r *StandardRouter) IgnoreSender(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored[id] = struct{}{}
}
