package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/ouvidoria/internal/config"
)

func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Daemon) Uptime() time.Duration {
	return time.Since(d.bootedAt)
}

func (d *Daemon) setHealth(status HealthStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// ComponentHealth polls every component. An error from Health is folded
// into the returned entry.
func (d *Daemon) ComponentHealth() map[string]*ComponentHealth {
	result := make(map[string]*ComponentHealth)
	for _, comp := range d.snapshot() {
		health, err := comp.Health(context.Background())
		if health == nil {
			health = &ComponentHealth{Name: comp.Name()}
		}
		if err != nil {
			health.Healthy = false
			health.Error = err
		}
		result[comp.Name()] = health
	}
	return result
}

func (d *Daemon) startHealthMonitor(ctx context.Context) {
	interval, err := config.DurationOrDefault(d.cfg.Daemon.HealthCheckInterval, config.DefaultDaemonHealthCheckInterval)
	if err != nil {
		slog.Error("Failed to parse daemon health check interval", "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.monitorEnd:
			return
		case <-ticker.C:
			d.logUnhealthy()
		}
	}
}

func (d *Daemon) logUnhealthy() {
	healths := d.ComponentHealth()
	unhealthy := 0
	for name, h := range healths {
		if !h.Healthy {
			unhealthy++
			slog.Warn("Component unhealthy", "component", name, "error", h.Error)
		}
	}
	if unhealthy > 0 {
		slog.Warn("Daemon has unhealthy components", "count", unhealthy, "total", len(healths))
		return
	}
	slog.Debug("All components healthy", "count", len(healths))
}
