package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/daemon"
	"github.com/harunnryd/ouvidoria/internal/intake"
	"github.com/harunnryd/ouvidoria/internal/intel"
	"github.com/harunnryd/ouvidoria/internal/metrics"
)

// IntakeComponent builds the conversation engine over the stores.
type IntakeComponent struct {
	cfg       *config.Config
	storeComp *StoreComponent
	notifier  intake.Notifier
	metrics   *metrics.Metrics
	svc       intel.Service

	engine      *intake.Engine
	initialized bool
	mu          sync.RWMutex
}

// NewIntakeComponent wires the engine. notifier may be nil. svc overrides
// the intelligence service built from the models config.
func NewIntakeComponent(cfg *config.Config, storeComp *StoreComponent, notifier intake.Notifier, m *metrics.Metrics, svc intel.Service) *IntakeComponent {
	return &IntakeComponent{
		cfg:       cfg,
		storeComp: storeComp,
		notifier:  notifier,
		metrics:   m,
		svc:       svc,
	}
}

func (c *IntakeComponent) Name() string {
	return "Intake"
}

func (c *IntakeComponent) Dependencies() []string {
	return []string{"Store"}
}

func (c *IntakeComponent) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.storeComp == nil {
		return fmt.Errorf("storeComp not provided")
	}
	sessions := c.storeComp.Sessions()
	reports := c.storeComp.Reports()
	if sessions == nil || reports == nil {
		return fmt.Errorf("store not initialized")
	}

	engineCfg, err := intake.ConfigFrom(c.cfg.Intake)
	if err != nil {
		return err
	}

	svc := c.svc
	if svc == nil {
		svc, err = intel.FromConfig(c.cfg)
		if err != nil {
			return fmt.Errorf("failed to build intelligence service: %w", err)
		}
	}

	opts := []intake.Option{intake.WithMetrics(c.metrics)}
	if c.notifier != nil {
		opts = append(opts, intake.WithNotifier(c.notifier))
	}
	c.engine = intake.New(sessions, reports, svc, engineCfg, opts...)
	c.initialized = true
	slog.Info("Intake initialized", "component", c.Name(), "flow", engineCfg.Flow, "correct_text", engineCfg.CorrectText, "analyze", engineCfg.Analyze)
	return nil
}

func (c *IntakeComponent) Start(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return fmt.Errorf("Intake not initialized")
	}
	return nil
}

func (c *IntakeComponent) Stop(ctx context.Context) error {
	return nil
}

func (c *IntakeComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return &daemon.ComponentHealth{Name: c.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: c.Name(), Healthy: true}, nil
}

func (c *IntakeComponent) GetEngine() *intake.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}
