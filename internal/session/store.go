package session

import (
	"context"
	"sync"
	"time"
)

// Store keeps live sessions keyed by sender id. Callers serialize access per
// sender; the store itself only guarantees last-write-wins.
type Store interface {
	// GetOrCreate returns the sender's session, or a fresh MENU session when
	// none exists or the stored one has been idle past the timeout.
	// created is true whenever the returned session is fresh.
	GetOrCreate(ctx context.Context, senderID string) (*Session, bool, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, senderID string) error
	// Sweep drops every session idle past the timeout and returns how many.
	Sweep(ctx context.Context, now time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Options struct {
	Timeout time.Duration
	Now     func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// MemoryStore is the process-lifetime store.
type MemoryStore struct {
	opts     Options
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, senderID string) (*Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	now := m.opts.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[senderID]; ok {
		if !s.Expired(now, m.opts.Timeout) {
			return s.Clone(), false, nil
		}
		delete(m.sessions, senderID)
	}

	s := New(senderID, now)
	m.sessions[senderID] = s.Clone()
	return s, true, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.SenderID] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, senderID string) error {
	m.mu.Lock()
	delete(m.sessions, senderID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, s := range m.sessions {
		if s.Expired(now, m.opts.Timeout) {
			delete(m.sessions, id)
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

func (m *MemoryStore) Close() error { return nil }
