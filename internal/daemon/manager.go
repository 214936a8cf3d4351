package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/store"
)

// Daemon owns the lifecycle of the registered components: dependency
// ordered init, start in registration order, stop in reverse.
type Daemon struct {
	cfg      *config.Config
	dataPath string

	mu         sync.RWMutex
	components []Component
	byName     map[string]Component
	status     HealthStatus
	bootedAt   time.Time
	monitorEnd chan struct{}
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Daemon.DataPath == "" {
		return nil, fmt.Errorf("daemon data path cannot be empty")
	}

	return &Daemon{
		cfg:        cfg,
		dataPath:   cfg.Daemon.DataPath,
		byName:     make(map[string]Component),
		status:     StatusStarting,
		bootedAt:   time.Now(),
		monitorEnd: make(chan struct{}),
	}, nil
}

// AddComponent registers comp. Registration order is start order; a second
// component with an already registered name is ignored.
func (d *Daemon) AddComponent(comp Component) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.byName[comp.Name()]; dup {
		slog.Warn("Component already registered, ignoring", "component", comp.Name())
		return
	}
	d.components = append(d.components, comp)
	d.byName[comp.Name()] = comp
	slog.Info("Component registered", "component", comp.Name(), "total_components", len(d.components))
}

// Start runs the daemon until ctx is cancelled or the process receives
// SIGINT/SIGTERM. A normal stop returns the context error.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("Ouvidoria daemon starting...", "data_path", d.dataPath)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.validateConfig(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := d.preInitChecks(ctx); err != nil {
		return fmt.Errorf("pre-init checks failed: %w", err)
	}

	if err := d.initializeComponents(ctx); err != nil {
		d.rollback(ctx)
		return fmt.Errorf("component initialization failed: %w", err)
	}

	if err := d.startComponents(ctx); err != nil {
		timeout, parseErr := config.DurationOrDefault(d.cfg.Daemon.StartupShutdownTimeout, config.DefaultDaemonStartupShutdownTimeout)
		if parseErr != nil {
			return fmt.Errorf("parse daemon startup shutdown timeout: %w", parseErr)
		}
		d.gracefulShutdown(context.Background(), timeout)
		return fmt.Errorf("component startup failed: %w", err)
	}

	d.setHealth(StatusRunning)
	slog.Info("Ouvidoria daemon is running", "data_path", d.dataPath, "components", len(d.components))

	go d.startHealthMonitor(ctx)
	<-ctx.Done()

	slog.Info("Shutting down", "data_path", d.dataPath, "reason", ctx.Err())
	d.setHealth(StatusStopping)
	close(d.monitorEnd)

	timeout, err := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon shutdown timeout: %w", err)
	}
	if err := d.gracefulShutdown(context.Background(), timeout); err != nil {
		return err
	}

	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return nil
}

// DataPath is the directory holding the lock, sessions and idempotency file.
func (d *Daemon) DataPath() string {
	return d.dataPath
}

// Component returns the registered component called name, or nil.
func (d *Daemon) Component(name string) Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byName[name]
}

func (d *Daemon) snapshot() []Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Component, len(d.components))
	copy(out, d.components)
	return out
}

func (d *Daemon) validateConfig() error {
	if d.cfg.Server.Port < 1 || d.cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", d.cfg.Server.Port)
	}
	if err := os.MkdirAll(d.dataPath, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	slog.Info("Configuration validated", "data_path", d.dataPath, "port", d.cfg.Server.Port)
	return nil
}

// preInitChecks clears a lock file left behind by a crashed process so
// the store can claim the data directory.
func (d *Daemon) preInitChecks(ctx context.Context) error {
	ttl, err := config.DurationOrDefault(d.cfg.Daemon.StaleLockTTL, config.DefaultDaemonStaleLockTTL)
	if err != nil {
		return fmt.Errorf("parse daemon stale lock ttl: %w", err)
	}
	if err := store.CleanupStaleLocks(d.dataPath, ttl); err != nil {
		slog.Warn("Failed to cleanup stale locks", "data_path", d.dataPath, "error", err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pre-init checks cancelled: %w", err)
	}
	return nil
}

func (d *Daemon) initializeComponents(ctx context.Context) error {
	order, err := d.initOrder()
	if err != nil {
		return err
	}

	for _, comp := range order {
		slog.Info("Initializing component...", "component", comp.Name())
		if err := comp.Init(ctx); err != nil {
			slog.Error("Component initialization failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s init failed: %w", comp.Name(), err)
		}
	}
	slog.Info("All components initialized", "count", len(order))
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	for _, comp := range d.snapshot() {
		if err := comp.Start(ctx); err != nil {
			slog.Error("Component startup failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s startup failed: %w", comp.Name(), err)
		}
		slog.Info("Component started", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) gracefulShutdown(ctx context.Context, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.shutdownComponents(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			slog.Error("Shutdown completed with error", "data_path", d.dataPath, "error", err)
		} else {
			slog.Info("Graceful shutdown completed", "data_path", d.dataPath)
		}
		return err
	case <-shutdownCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
		slog.Error("Shutdown timeout exceeded", "data_path", d.dataPath, "timeout", timeout)
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// shutdownComponents stops everything in reverse registration order.
// Stop errors are logged and do not halt the remaining stops.
func (d *Daemon) shutdownComponents(ctx context.Context) error {
	d.stopAll(ctx, "Component stop failed")
	d.setHealth(StatusStopped)
	return nil
}

// rollback undoes a partial init. Components must tolerate Stop without
// a prior Start.
func (d *Daemon) rollback(ctx context.Context) {
	slog.Warn("Rolling back initialized components...", "data_path", d.dataPath)
	d.stopAll(ctx, "Rollback failed")
	d.setHealth(StatusStopped)
}

func (d *Daemon) stopAll(ctx context.Context, failMsg string) {
	comps := d.snapshot()
	for i := len(comps) - 1; i >= 0; i-- {
		if err := comps[i].Stop(ctx); err != nil {
			slog.Error(failMsg, "component", comps[i].Name(), "error", err)
		}
	}
}
