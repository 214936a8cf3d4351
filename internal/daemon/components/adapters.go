package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/daemon"
)

// AdaptersComponent runs the messaging gateways. The manager is built by
// the caller so gateway callbacks can reach the ingress lazily; it starts
// after Ingress so no message arrives before there is somewhere to put it.
type AdaptersComponent struct {
	manager *adapter.RuntimeManager

	mu      sync.Mutex
	running bool
}

func NewAdaptersComponent(manager *adapter.RuntimeManager) *AdaptersComponent {
	return &AdaptersComponent{manager: manager}
}

func (a *AdaptersComponent) Name() string           { return "Adapters" }
func (a *AdaptersComponent) Dependencies() []string { return []string{"Ingress"} }

func (a *AdaptersComponent) Init(ctx context.Context) error {
	if a.manager == nil {
		return fmt.Errorf("adapter manager not configured")
	}
	names := make([]string, 0)
	for _, o := range a.manager.OutputAdapters() {
		names = append(names, o.Name())
	}
	slog.Info("Adapters initialized", "component", a.Name(), "outputs", names, "notifier", a.manager.Notifier() != nil)
	return nil
}

func (a *AdaptersComponent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.manager == nil {
		return fmt.Errorf("adapter manager not configured")
	}
	a.manager.Start(ctx)
	a.running = true
	return nil
}

func (a *AdaptersComponent) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	return a.manager.Stop(ctx)
}

func (a *AdaptersComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	h := &daemon.ComponentHealth{Name: a.Name()}
	switch {
	case !running:
		h.Error = fmt.Errorf("not started")
	default:
		h.Error = a.manager.Health(ctx)
	}
	h.Healthy = h.Error == nil
	return h, nil
}

func (a *AdaptersComponent) Manager() *adapter.RuntimeManager {
	return a.manager
}
