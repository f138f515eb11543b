// Package async runs fire-and-forget side effects (audit writes, usage
// accounting) off the request path.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/teamplatform/teamplatform/internal/metrics"
)

// Task is a unit of background work. The context it receives is detached
// from any request and bounded by the executor's task timeout.
type Task func(ctx context.Context)

// Executor dispatches tasks without making the caller wait for them.
type Executor interface {
	Go(name string, task Task)
}

// Pool is a bounded Executor. At most `size` tasks run at once; when the pool
// is saturated new tasks are dropped rather than queued so that callers never
// block.
type Pool struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a Pool that runs up to size tasks concurrently, each with
// the given timeout.
func NewPool(size int, timeout time.Duration, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		timeout: timeout,
		logger:  logger,
	}
}

// Go runs task in a new goroutine if a slot is free and drops it otherwise.
func (p *Pool) Go(name string, task Task) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.drop(name, "executor closed")
		return
	}
	if !p.sem.TryAcquire(1) {
		p.mu.Unlock()
		p.drop(name, "executor saturated")
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		run(name, task, p.timeout, p.logger)
	}()
}

// Shutdown stops accepting tasks and waits for running ones to finish or
// for ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) drop(name, reason string) {
	metrics.AsyncTasksDropped.WithLabelValues(name).Inc()
	p.logger.Warn("background task dropped", "task", name, "reason", reason)
}

// Inline runs tasks synchronously on the calling goroutine. Tests and the
// administrative commands use it to observe side effects before returning.
type Inline struct {
	Logger *slog.Logger
}

// Go runs task immediately.
func (i Inline) Go(name string, task Task) {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}
	run(name, task, 10*time.Second, logger)
}

func run(name string, task Task, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("background task panicked", "task", name, "panic", r)
		}
	}()
	task(ctx)
}
