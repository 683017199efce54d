package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterPool keeps one token bucket per client address. A bucket left
// idle long enough to refill completely is indistinguishable from a new
// one, so it is dropped on the next sweep.
type limiterPool struct {
	mu        sync.Mutex
	m         map[string]*visitor
	rps       float64
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	idle := time.Duration(float64(burst) / rps * float64(time.Second))
	return &limiterPool{m: make(map[string]*visitor), rps: rps, burst: burst, idle: max(idle, time.Second)}
}

// Allow reports whether key may make another request at now.
func (p *limiterPool) Allow(key string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if now.Sub(p.lastSweep) >= p.idle {
		p.sweepLocked(now)
	}
	v, ok := p.m[key]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (p *limiterPool) sweepLocked(now time.Time) {
	for k, v := range p.m {
		if now.Sub(v.seen) >= p.idle {
			delete(p.m, k)
		}
	}
	p.lastSweep = now
}

// Len returns the number of tracked clients.
func (p *limiterPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
