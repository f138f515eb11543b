// Package ratelimit implements the fixed-window admission limiter.
package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teamplatform/teamplatform/internal/metrics"
)

// DefaultSweepThreshold is the table size above which expired windows are
// swept on the next check.
const DefaultSweepThreshold = 10000

// Config is the ceiling for one route class.
type Config struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// ResetSeconds is ResetIn rounded up to whole seconds, as sent in
// Retry-After and X-RateLimit-Reset.
func (r Result) ResetSeconds() int64 {
	if r.ResetIn <= 0 {
		return 0
	}
	return int64((r.ResetIn + time.Second - 1) / time.Second)
}

// Limiter counts requests per key in fixed windows. Check is atomic per
// limiter: concurrent callers sharing a key never see more than
// Config.Requests allowed results within one window.
type Limiter struct {
	mu             sync.Mutex
	cache          Cache
	sweepThreshold int
	now            func() time.Time
	logger         *slog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithCache replaces the default MemoryCache.
func WithCache(c Cache) Option {
	return func(l *Limiter) { l.cache = c }
}

// WithSweepThreshold sets the high-water mark that triggers a sweep.
func WithSweepThreshold(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.sweepThreshold = n
		}
	}
}

// WithLogger sets the logger used for sweep faults.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a Limiter backed by a MemoryCache unless overridden.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		cache:          NewMemoryCache(),
		sweepThreshold: DefaultSweepThreshold,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request against key and reports whether it is admitted.
//
// A missing or elapsed window starts fresh with count 1. A window at its
// ceiling denies without counting the request. Otherwise the count is
// incremented. When the cache fails, Check returns an allowed result
// together with the error so the caller can fail open.
func (l *Limiter) Check(key string, cfg Config) (Result, error) {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return l.open(cfg), fmt.Errorf("invalid rate limit config %d/%s", cfg.Requests, cfg.Window)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.cache.Len() > l.sweepThreshold {
		l.sweep(now)
	}

	entry, ok, err := l.cache.Get(key)
	if err != nil {
		return l.open(cfg), fmt.Errorf("read window %q: %w", key, err)
	}

	if !ok || !now.Before(entry.ResetAt) {
		entry = Entry{Count: 1, ResetAt: now.Add(cfg.Window)}
		if err := l.cache.Set(key, entry); err != nil {
			return l.open(cfg), fmt.Errorf("write window %q: %w", key, err)
		}
		metrics.LimiterEntries.Set(float64(l.cache.Len()))
		return Result{Allowed: true, Limit: cfg.Requests, Remaining: cfg.Requests - 1, ResetIn: cfg.Window}, nil
	}

	resetIn := entry.ResetAt.Sub(now)
	if entry.Count >= cfg.Requests {
		return Result{Allowed: false, Limit: cfg.Requests, Remaining: 0, ResetIn: resetIn}, nil
	}

	entry.Count++
	if err := l.cache.Set(key, entry); err != nil {
		return l.open(cfg), fmt.Errorf("write window %q: %w", key, err)
	}
	return Result{Allowed: true, Limit: cfg.Requests, Remaining: cfg.Requests - entry.Count, ResetIn: resetIn}, nil
}

// Len returns the number of tracked windows.
func (l *Limiter) Len() int {
	return l.cache.Len()
}

// sweep evicts elapsed windows. Failures are logged only; they never affect
// the decision being made.
func (l *Limiter) sweep(now time.Time) {
	removed, err := l.cache.Sweep(now)
	if err != nil {
		metrics.LimiterErrors.Inc()
		l.logger.Error("rate limit sweep failed", "error", err)
		return
	}
	if removed > 0 {
		l.logger.Debug("rate limit sweep", "removed", removed)
	}
	metrics.LimiterEntries.Set(float64(l.cache.Len()))
}

func (l *Limiter) open(cfg Config) Result {
	return Result{Allowed: true, Limit: cfg.Requests, Remaining: cfg.Requests, ResetIn: cfg.Window}
}
