package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileLock keeps a second daemon from opening the same data directory.
// Pebble and the idempotency file both assume a single writer.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.RWMutex
}

type FileLockConfig struct {
	LockTimeout time.Duration
	LockRetry   time.Duration
}

func DefaultFileLockConfig() *FileLockConfig {
	return &FileLockConfig{
		LockTimeout: 10 * time.Second,
		LockRetry:   100 * time.Millisecond,
	}
}

// NewFileLock acquires dataDir/daemon.lock, retrying until cfg.LockTimeout.
func NewFileLock(ctx context.Context, dataDir string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}
	if cfg.LockRetry <= 0 {
		cfg.LockRetry = 100 * time.Millisecond
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lockPath := LockPath(dataDir)
	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	lockCtx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
	defer cancel()

	locked, err := fl.fileLock.TryLockContext(lockCtx, cfg.LockRetry)
	if err != nil {
		if lockCtx.Err() != nil {
			return nil, fmt.Errorf("data dir %s is locked by another instance (timeout after %v)", dataDir, cfg.LockTimeout)
		}
		return nil, fmt.Errorf("failed to attempt lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("data dir %s is locked by another instance", dataDir)
	}

	fl.acquiredAt = time.Now()
	slog.Info("File lock acquired", "path", lockPath)
	return fl, nil
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		slog.Warn("FileLock already unlocked", "path", fl.lockPath)
		return
	}

	held := time.Since(fl.acquiredAt)
	if err := fl.fileLock.Unlock(); err != nil {
		slog.Error("Failed to release file lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Info("File lock released", "path", fl.lockPath, "held_duration_ms", held.Milliseconds())
	}
	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.fileLock != nil
}

// CleanupStaleLocks removes a lock file older than maxAge that nobody holds.
func CleanupStaleLocks(dataDir string, maxAge time.Duration) error {
	lockPath := LockPath(dataDir)
	info, err := os.Stat(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	age := time.Since(info.ModTime())
	if age <= maxAge {
		return nil
	}

	probe := flock.New(lockPath)
	locked, err := probe.TryLock()
	if err != nil || !locked {
		return nil
	}
	defer probe.Unlock()

	slog.Warn("Removing stale lock file", "path", lockPath, "age", age, "max_age", maxAge)
	return os.Remove(lockPath)
}
