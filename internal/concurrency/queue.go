package concurrency

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// KeyedQueue runs jobs one at a time per key, in the order Enqueue was
// called. A key's worker goroutine exists only while it has jobs.
type KeyedQueue struct {
	limit   int
	onPanic func(key string, v any)

	mu     sync.Mutex
	jobs   map[string][]func()
	closed bool
	wg     sync.WaitGroup
}

// NewKeyedQueue bounds each key to limit waiting jobs; limit <= 0 means
// unbounded. onPanic may be nil.
func NewKeyedQueue(limit int, onPanic func(key string, v any)) *KeyedQueue {
	return &KeyedQueue{
		limit:   limit,
		onPanic: onPanic,
		jobs:    make(map[string][]func()),
	}
}

// Enqueue appends fn to key's queue and returns without waiting for it.
func (q *KeyedQueue) Enqueue(key string, fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	pending, working := q.jobs[key]
	if q.limit > 0 && len(pending) >= q.limit {
		return ErrQueueFull
	}
	q.jobs[key] = append(pending, fn)
	if !working {
		q.wg.Add(1)
		go q.work(key)
	}
	return nil
}

// work drains key's queue. The map entry stays while a job runs so a
// concurrent Enqueue appends instead of starting a second worker.
func (q *KeyedQueue) work(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.jobs[key]
		if len(pending) == 0 {
			delete(q.jobs, key)
			q.mu.Unlock()
			return
		}
		fn := pending[0]
		pending[0] = nil
		q.jobs[key] = pending[1:]
		q.mu.Unlock()

		Recover(fn, func(v any) {
			if q.onPanic != nil {
				q.onPanic(key, v)
			}
		})
	}
}

// Close rejects new jobs and waits for queued ones until ctx is done.
func (q *KeyedQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of keys with queued or running jobs.
func (q *KeyedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
