package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/pebble"
)

const keyPrefix = "session:"

var errUndecodable = errors.New("undecodable session")

// PebbleStore keeps sessions on disk so an in-flight report survives a restart.
type PebbleStore struct {
	opts Options
	db   *pebble.DB
}

func OpenPebble(path string, opts Options) (*PebbleStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open sessions db: %w", err)
	}
	return &PebbleStore{opts: opts, db: db}, nil
}

func sessionKey(senderID string) []byte {
	return []byte(keyPrefix + senderID)
}

func (p *PebbleStore) load(senderID string) (*Session, error) {
	v, closer, err := p.db.Get(sessionKey(senderID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var s Session
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errUndecodable, err)
	}
	return &s, nil
}

func (p *PebbleStore) write(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return p.db.Set(sessionKey(s.SenderID), data, pebble.Sync)
}

func (p *PebbleStore) GetOrCreate(ctx context.Context, senderID string) (*Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	now := p.opts.now()

	existing, err := p.load(senderID)
	if errors.Is(err, errUndecodable) {
		// The fresh session below overwrites the entry.
		slog.Warn("Discarding unreadable session", "error", err)
		existing, err = nil, nil
	}
	if err != nil {
		return nil, false, err
	}
	if existing != nil && !existing.Expired(now, p.opts.Timeout) {
		return existing, false, nil
	}

	s := New(senderID, now)
	if err := p.write(s); err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func (p *PebbleStore) Save(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.write(s)
}

func (p *PebbleStore) Delete(ctx context.Context, senderID string) error {
	return p.db.Delete(sessionKey(senderID), pebble.Sync)
}

func (p *PebbleStore) each(fn func(key []byte, s *Session) error) error {
	prefix := []byte(keyPrefix)
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		if !bytes.HasPrefix(it.Key(), prefix) {
			continue
		}
		var s Session
		if err := json.Unmarshal(it.Value(), &s); err != nil {
			// unreadable entries are treated as expired
			s = Session{}
		}
		key := append([]byte(nil), it.Key()...)
		if err := fn(key, &s); err != nil {
			return err
		}
	}
	return it.Error()
}

func (p *PebbleStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	var stale [][]byte
	err := p.each(func(key []byte, s *Session) error {
		if s.SenderID == "" || s.Expired(now, p.opts.Timeout) {
			stale = append(stale, key)
		}
		return ctx.Err()
	})
	if err != nil {
		return 0, err
	}

	for _, key := range stale {
		if err := p.db.Delete(key, pebble.Sync); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

func (p *PebbleStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := p.each(func(_ []byte, _ *Session) error {
		n++
		return nil
	})
	return n, err
}

func (p *PebbleStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
