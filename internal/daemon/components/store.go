package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/daemon"
	"github.com/harunnryd/ouvidoria/internal/idempotency"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
	"github.com/harunnryd/ouvidoria/internal/store"
)

const (
	SessionsBackendMemory = "memory"
	SessionsBackendPebble = "pebble"
)

// StoreComponent owns everything on disk: the data dir lock, the records
// database, the session store and the processed message ids.
type StoreComponent struct {
	cfg *config.Config

	lock     *store.FileLock
	db       *store.SQLiteStore
	reports  *report.StoreRepository
	sessions session.Store
	idem     *idempotency.Store

	initialized bool
	started     bool
	mu          sync.RWMutex
}

func NewStoreComponent(cfg *config.Config) *StoreComponent {
	return &StoreComponent{cfg: cfg}
}

func (s *StoreComponent) Name() string {
	return "Store"
}

func (s *StoreComponent) Dependencies() []string {
	return []string{}
}

func (s *StoreComponent) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("Store init cancelled: %w", ctx.Err())
	default:
	}

	if s.cfg == nil {
		return fmt.Errorf("store config not provided")
	}
	dataPath := s.cfg.Daemon.DataPath

	lockTimeout, err := config.DurationOrDefault(s.cfg.Daemon.LockTimeout, config.DefaultDaemonLockTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(s.cfg.Daemon.LockRetry, config.DefaultDaemonLockRetry)
	if err != nil {
		return fmt.Errorf("parse daemon lock retry: %w", err)
	}
	sessionTimeout, err := config.DurationOrDefault(s.cfg.Intake.SessionTimeout, config.DefaultIntakeSessionTimeout)
	if err != nil {
		return fmt.Errorf("parse intake session timeout: %w", err)
	}

	lock, err := store.NewFileLock(ctx, dataPath, &store.FileLockConfig{LockTimeout: lockTimeout, LockRetry: lockRetry})
	if err != nil {
		return fmt.Errorf("failed to lock data dir: %w", err)
	}
	s.lock = lock

	table := s.cfg.Records.Table
	if table == "" {
		table = config.DefaultRecordsTable
	}
	db, err := store.OpenSQLite(ctx, s.cfg.Records.Path, report.Schema(table))
	if err != nil {
		s.release()
		return fmt.Errorf("failed to open records store: %w", err)
	}
	s.db = db
	s.reports = report.NewStoreRepository(db, table)

	opts := session.Options{Timeout: sessionTimeout}
	backend := strings.ToLower(strings.TrimSpace(s.cfg.Sessions.Backend))
	switch backend {
	case "", SessionsBackendMemory:
		s.sessions = session.NewMemoryStore(opts)
	case SessionsBackendPebble:
		ps, err := session.OpenPebble(s.cfg.Sessions.Path, opts)
		if err != nil {
			s.release()
			return fmt.Errorf("failed to open session store: %w", err)
		}
		s.sessions = ps
	default:
		s.release()
		return fmt.Errorf("unknown sessions backend %q", s.cfg.Sessions.Backend)
	}

	idem, err := idempotency.NewStore(store.IdempotencyPath(dataPath))
	if err != nil {
		s.release()
		return fmt.Errorf("failed to load processed message ids: %w", err)
	}
	s.idem = idem

	s.initialized = true
	slog.Info("Store initialized", "component", s.Name(), "records", s.cfg.Records.Path, "sessions", backend)
	return nil
}

func (s *StoreComponent) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return fmt.Errorf("Store not initialized")
	}
	s.started = true
	slog.Info("Store started", "component", s.Name())
	return nil
}

func (s *StoreComponent) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		slog.Info("Store not initialized, skipping stop", "component", s.Name())
		return nil
	}

	slog.Info("Stopping Store...", "component", s.Name())
	if s.idem != nil {
		if err := s.idem.Save(); err != nil {
			slog.Error("Failed to save processed message ids", "component", s.Name(), "error", err)
		}
	}
	s.release()
	s.initialized = false
	s.started = false
	slog.Info("Store stopped", "component", s.Name())
	return nil
}

// release closes whatever Init managed to open, lock last.
func (s *StoreComponent) release() {
	if s.sessions != nil {
		if err := s.sessions.Close(); err != nil {
			slog.Error("Failed to close session store", "error", err)
		}
		s.sessions = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Failed to close records store", "error", err)
		}
		s.db = nil
	}
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
}

func (s *StoreComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	if !s.started {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("not started")}, nil
	}
	if !s.lock.IsLocked() {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: fmt.Errorf("lock not held")}, nil
	}
	if err := s.db.Ping(ctx); err != nil {
		return &daemon.ComponentHealth{Name: s.Name(), Healthy: false, Error: err}, nil
	}
	return &daemon.ComponentHealth{Name: s.Name(), Healthy: true}, nil
}

func (s *StoreComponent) Reports() *report.StoreRepository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports
}

func (s *StoreComponent) Sessions() session.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions
}

func (s *StoreComponent) Idempotency() *idempotency.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idem
}
