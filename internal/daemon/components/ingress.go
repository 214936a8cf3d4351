package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/daemon"
	"github.com/harunnryd/ouvidoria/internal/ingress"
	"github.com/harunnryd/ouvidoria/internal/metrics"
)

type IngressComponent struct {
	ingress    *ingress.Ingress
	storeComp  *StoreComponent
	intakeComp *IntakeComponent
	cfg        *config.IngressConfig
	metrics    *metrics.Metrics
	outputs    []adapter.OutputAdapter
	ignored    []string

	initialized bool
	started     bool
	mu          sync.RWMutex
	startTime   time.Time
}

// NewIngressComponent routes gateway events into the engine and replies
// through outputs. Events from ignored senders, such as the bot's own
// number, are dropped.
func NewIngressComponent(storeComp *StoreComponent, intakeComp *IntakeComponent, cfg *config.IngressConfig, m *metrics.Metrics, outputs []adapter.OutputAdapter, ignored ...string) *IngressComponent {
	return &IngressComponent{
		storeComp:  storeComp,
		intakeComp: intakeComp,
		cfg:        cfg,
		metrics:    m,
		outputs:    outputs,
		ignored:    ignored,
	}
}

func (i *IngressComponent) Name() string {
	return "Ingress"
}

func (i *IngressComponent) Dependencies() []string {
	return []string{"Store", "Intake"}
}

func (i *IngressComponent) Init(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.storeComp == nil || i.intakeComp == nil {
		return fmt.Errorf("store and intake components are required")
	}
	idem := i.storeComp.Idempotency()
	if idem == nil {
		return fmt.Errorf("idempotency store not initialized")
	}
	engine := i.intakeComp.GetEngine()
	if engine == nil {
		return fmt.Errorf("intake engine not initialized")
	}
	if i.cfg == nil {
		return fmt.Errorf("ingress config not provided")
	}

	runtimeCfg, err := ingress.RuntimeConfigFrom(*i.cfg)
	if err != nil {
		return err
	}

	ing := ingress.NewIngress(engine, idem, runtimeCfg, i.metrics)
	ing.RegisterOutput(i.outputs...)
	for _, id := range i.ignored {
		ing.IgnoreSender(id)
	}
	i.ingress = ing
	i.initialized = true
	slog.Info("Ingress initialized", "component", i.Name(), "outputs", len(i.outputs), "rate_rps", runtimeCfg.RateRPS)
	return nil
}

func (i *IngressComponent) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.initialized {
		return fmt.Errorf("Ingress not initialized")
	}

	i.started = true
	i.startTime = time.Now()
	slog.Info("Ingress started", "component", i.Name())
	return nil
}

func (i *IngressComponent) Stop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.started {
		slog.Info("Ingress not started, skipping stop", "component", i.Name())
		return nil
	}

	slog.Info("Stopping Ingress...", "component", i.Name())
	if i.ingress != nil {
		if err := i.ingress.Close(); err != nil {
			slog.Error("Ingress close failed", "component", i.Name(), "error", err)
		}
	}
	i.started = false
	slog.Info("Ingress stopped", "component", i.Name())
	return nil
}

func (i *IngressComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if !i.started {
		return &daemon.ComponentHealth{
			Name:    i.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not started"),
		}, nil
	}

	if err := i.ingress.Health(ctx); err != nil {
		return &daemon.ComponentHealth{
			Name:    i.Name(),
			Healthy: false,
			Error:   err,
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    i.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}

func (i *IngressComponent) GetIngress() *ingress.Ingress {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.ingress
}
