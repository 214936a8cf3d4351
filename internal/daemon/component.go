package daemon

import (
	"context"
)

type HealthStatus string

const (
	StatusStarting HealthStatus = "starting"
	StatusRunning  HealthStatus = "running"
	StatusStopping HealthStatus = "stopping"
	StatusStopped  HealthStatus = "stopped"
)

// ComponentHealth is one entry of the /health report.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Error   error
}

// Component is a unit the daemon drives. Init runs after every named
// dependency's Init. Stop may be called without Start during rollback and
// must then be a no-op.
type Component interface {
	Name() string
	Dependencies() []string
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) (*ComponentHealth, error)
}
