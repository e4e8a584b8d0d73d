// Package ratelimit throttles outbound attempts per domain with a sliding
// window. Each domain has its own lock and timestamp window; idle domains
// are evicted by a background sweeper.
package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrWaitExceeded is returned when the next admission for a domain lies
// beyond the configured maximum wait.
var ErrWaitExceeded = errors.New("ratelimit: maximum wait exceeded")

// Config configures a Limiter.
type Config struct {
	// MaxCalls is the number of admissions allowed per Window. Default: 60
	MaxCalls int
	// Window is the trailing interval admissions are counted over. Default: 60s
	Window time.Duration
	// MaxWait bounds the time spent inside a single Acquire. Zero or negative waits forever.
	MaxWait time.Duration
	// MinBackoff is the shortest sleep between retries. Default: 50ms
	MinBackoff time.Duration
	// IdleTTL is how long an unused domain is kept. Default: 10m
	IdleTTL time.Duration
	// SweepInterval is how often idle domains are evicted. Default: IdleTTL/2.
	// A negative value disables the sweeper.
	SweepInterval time.Duration
	// DomainLimits overrides MaxCalls for specific domains.
	DomainLimits map[string]int
}

// Limiter is a registry of per-domain sliding windows.
type Limiter struct {
	cfg     Config
	domains sync.Map // string -> *window
	stop    chan struct{}
	once    sync.Once
}

type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastUsed time.Time
	evicted  bool
}

// New creates a Limiter and starts its sweeper.
func New(cfg Config) *Limiter {
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 50 * time.Millisecond
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	// An idle entry must have an empty window before it can go.
	if cfg.IdleTTL < cfg.Window {
		cfg.IdleTTL = cfg.Window
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = cfg.IdleTTL / 2
	}
	limits := make(map[string]int, len(cfg.DomainLimits))
	for d, n := range cfg.DomainLimits {
		limits[strings.ToLower(d)] = n
	}
	cfg.DomainLimits = limits

	l := &Limiter{cfg: cfg, stop: make(chan struct{})}
	if cfg.SweepInterval > 0 {
		go l.sweepLoop()
	}
	return l
}

// Limit returns the admission count used for domain.
func (l *Limiter) Limit(domain string) int {
	if n, ok := l.cfg.DomainLimits[strings.ToLower(domain)]; ok && n > 0 {
		return n
	}
	return l.cfg.MaxCalls
}

// Acquire blocks until domain may make another attempt under its limit.
func (l *Limiter) Acquire(ctx context.Context, domain string) error {
	return l.AcquireN(ctx, domain, l.Limit(domain))
}

// AcquireN blocks until domain has fewer than maxCalls admissions in the
// trailing window, then records one. Waiters are not queued: whoever
// retries first after a slot frees up wins it.
func (l *Limiter) AcquireN(ctx context.Context, domain string, maxCalls int) error {
	if maxCalls <= 0 {
		maxCalls = l.cfg.MaxCalls
	}
	domain = strings.ToLower(domain)
	start := time.Now()

	for {
		w := l.entry(domain)

		w.mu.Lock()
		if w.evicted {
			w.mu.Unlock()
			continue
		}
		now := time.Now()
		w.prune(now, l.cfg.Window)
		w.lastUsed = now
		if len(w.stamps) < maxCalls {
			w.stamps = append(w.stamps, now)
			w.mu.Unlock()
			return nil
		}
		wait := w.stamps[0].Add(l.cfg.Window).Sub(now)
		w.mu.Unlock()

		if wait < l.cfg.MinBackoff {
			wait = l.cfg.MinBackoff
		}
		if l.cfg.MaxWait > 0 && now.Add(wait).Sub(start) > l.cfg.MaxWait {
			return ErrWaitExceeded
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Len returns the number of domains currently tracked.
func (l *Limiter) Len() int {
	n := 0
	l.domains.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep evicts domains idle for longer than IdleTTL and returns how many
// were removed.
func (l *Limiter) Sweep() int {
	now := time.Now()
	removed := 0
	l.domains.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		w.prune(now, l.cfg.Window)
		if len(w.stamps) == 0 && now.Sub(w.lastUsed) > l.cfg.IdleTTL {
			w.evicted = true
			l.domains.CompareAndDelete(key, w)
			removed++
		}
		w.mu.Unlock()
		return true
	})
	return removed
}

// Close stops the sweeper. Safe to call multiple times.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) entry(domain string) *window {
	if v, ok := l.domains.Load(domain); ok {
		return v.(*window)
	}
	v, _ := l.domains.LoadOrStore(domain, &window{lastUsed: time.Now()})
	return v.(*window)
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stop:
			return
		}
	}
}

// prune drops timestamps that have left the window. Caller holds w.mu.
func (w *window) prune(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
