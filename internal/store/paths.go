package store

import "path/filepath"

// LockPath returns the daemon lock file inside a data directory.
func LockPath(dataDir string) string {
	return filepath.Join(dataDir, "daemon.lock")
}

// IdempotencyPath returns where processed gateway message ids are kept.
func IdempotencyPath(dataDir string) string {
	return filepath.Join(dataDir, "processed_messages.json")
}
