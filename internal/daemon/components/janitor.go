package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/daemon"

	"github.com/robfig/cron/v3"
)

// limiterIdle is how long a sender's rate limiter may sit unused before
// the janitor drops it.
const limiterIdle = 10 * time.Minute

// JanitorComponent periodically drops idle sessions, expired message ids
// and unused rate limiters.
type JanitorComponent struct {
	cfg         *config.JanitorConfig
	intakeComp  *IntakeComponent
	ingressComp *IngressComponent

	cron    *cron.Cron
	entry   cron.EntryID
	runs    atomic.Int64
	lastErr atomic.Value
	mu      sync.Mutex
	started bool
}

func NewJanitorComponent(cfg *config.JanitorConfig, intakeComp *IntakeComponent, ingressComp *IngressComponent) *JanitorComponent {
	return &JanitorComponent{
		cfg:         cfg,
		intakeComp:  intakeComp,
		ingressComp: ingressComp,
	}
}

func (j *JanitorComponent) Name() string {
	return "Janitor"
}

func (j *JanitorComponent) Dependencies() []string {
	return []string{"Intake", "Ingress"}
}

func (j *JanitorComponent) Init(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	schedule := config.DefaultJanitorSchedule
	if j.cfg != nil && strings.TrimSpace(j.cfg.Schedule) != "" {
		schedule = strings.TrimSpace(j.cfg.Schedule)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("parse janitor schedule %q: %w", schedule, err)
	}

	j.cron = cron.New()
	entry, err := j.cron.AddFunc(schedule, func() { j.RunOnce(context.Background()) })
	if err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.entry = entry
	slog.Info("Janitor initialized", "component", j.Name(), "schedule", schedule)
	return nil
}

func (j *JanitorComponent) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron == nil {
		return fmt.Errorf("Janitor not initialized")
	}
	j.cron.Start()
	j.started = true
	slog.Info("Janitor started", "component", j.Name())
	return nil
}

func (j *JanitorComponent) Stop(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.started {
		slog.Info("Janitor not started, skipping stop", "component", j.Name())
		return nil
	}

	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		return fmt.Errorf("janitor stop: %w", ctx.Err())
	}
	j.started = false
	slog.Info("Janitor stopped", "component", j.Name(), "runs", j.runs.Load())
	return nil
}

func (j *JanitorComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	j.mu.Lock()
	started := j.started
	j.mu.Unlock()

	if !started {
		return &daemon.ComponentHealth{Name: j.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	if box, ok := j.lastErr.Load().(errBox); ok && box.err != nil {
		return &daemon.ComponentHealth{Name: j.Name(), Healthy: false, Error: box.err}, nil
	}
	return &daemon.ComponentHealth{Name: j.Name(), Healthy: true}, nil
}

// RunOnce performs one sweep. It is what the schedule runs.
func (j *JanitorComponent) RunOnce(ctx context.Context) {
	j.runs.Add(1)
	var sweepErr error

	if j.intakeComp != nil {
		if engine := j.intakeComp.GetEngine(); engine != nil {
			n, err := engine.SweepSessions(ctx)
			if err != nil {
				sweepErr = fmt.Errorf("sweep sessions: %w", err)
				slog.Error("Session sweep failed", "component", j.Name(), "error", err)
			} else if n > 0 {
				slog.Info("Expired sessions dropped", "component", j.Name(), "count", n)
			}
		}
	}

	if j.ingressComp != nil {
		if ing := j.ingressComp.GetIngress(); ing != nil {
			n, err := ing.PruneIdempotency()
			if err != nil {
				sweepErr = fmt.Errorf("prune processed message ids: %w", err)
				slog.Error("Idempotency prune failed", "component", j.Name(), "error", err)
			} else if n > 0 {
				slog.Debug("Expired message ids dropped", "component", j.Name(), "count", n)
			}
			if n := ing.PruneLimiters(limiterIdle); n > 0 {
				slog.Debug("Idle rate limiters dropped", "component", j.Name(), "count", n)
			}
		}
	}

	j.lastErr.Store(errBox{sweepErr})
}

// Runs reports how many sweeps have completed.
func (j *JanitorComponent) Runs() int64 {
	return j.runs.Load()
}

// errBox lets atomic.Value hold a nil error alongside non-nil ones.
type errBox struct{ err error }
