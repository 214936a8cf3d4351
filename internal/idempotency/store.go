// Package idempotency remembers which gateway message ids were already
// handled, so a redelivered webhook is acknowledged without a second pass.
package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// snapshot is the file format: key -> expiry in unix seconds.
type snapshot struct {
	Keys map[string]int64 `json:"keys"`
}

// Store is a TTL set of keys. With a path it is loaded on open and
// written back atomically on Save and Prune; without one it lives in
// memory only.
type Store struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	expiry map[string]int64
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now, expiry: make(map[string]int64)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, s.flush()
	case err != nil:
		return nil, fmt.Errorf("read processed ids: %w", err)
	case len(bytes.TrimSpace(data)) == 0:
		return s, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode processed ids %s: %w", path, err)
	}
	for k, exp := range snap.Keys {
		s.expiry[k] = exp
	}
	return s, nil
}

// NewMemoryStore returns a store that never touches disk.
func NewMemoryStore() *Store {
	s, _ := NewStore("")
	return s
}

// CheckAndMark reports whether key was already seen and is still within
// its ttl. An unseen or expired key is marked in the same critical
// section. Empty keys are never deduplicated.
func (s *Store) CheckAndMark(key string, ttl time.Duration) bool {
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	if exp, ok := s.expiry[key]; ok && exp > now {
		return true
	}
	s.expiry[key] = now + int64(ttl/time.Second)
	return false
}

// Prune drops expired keys and persists the remainder when anything changed.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	dropped := 0
	for k, exp := range s.expiry {
		if exp <= now {
			delete(s.expiry, k)
			dropped++
		}
	}
	if dropped == 0 {
		return 0, nil
	}
	return dropped, s.flush()
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

// flush writes the set; callers hold mu.
func (s *Store) flush() error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(snapshot{Keys: s.expiry})
	if err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(data))
}
