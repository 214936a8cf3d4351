package ingress

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastSeen   time.Time
	noticeSent time.Time
}

// limiterPool keeps one token bucket per sender.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	now   func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	return &limiterPool{
		m:     make(map[string]*limiterEntry),
		rps:   rps,
		burst: burst,
		now:   time.Now,
	}
}

// Allow reports whether key may send another message now. A non-positive
// rate disables limiting.
func (p *limiterPool) Allow(key string) bool {
	if p == nil || p.rps <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	e, ok := p.m[key]
	if !ok {
		burst := p.burst
		if burst <= 0 {
			burst = 1
		}
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(p.rps), burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Notice reports whether a throttled key should be told to slow down. It
// is true at most once per window, the time an empty bucket takes to
// refill.
func (p *limiterPool) Notice(key string) bool {
	if p == nil || p.rps <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.m[key]
	if !ok {
		return false
	}
	now := p.now()
	if !e.noticeSent.IsZero() && now.Sub(e.noticeSent) < p.window() {
		return false
	}
	e.noticeSent = now
	return true
}

func (p *limiterPool) window() time.Duration {
	burst := p.burst
	if burst <= 0 {
		burst = 1
	}
	w := time.Duration(float64(burst) / p.rps * float64(time.Second))
	if w < time.Second {
		w = time.Second
	}
	return w
}

// Prune forgets limiters idle for longer than idle.
func (p *limiterPool) Prune(idle time.Duration) int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-idle)
	n := 0
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
			n++
		}
	}
	return n
}

func (p *limiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
