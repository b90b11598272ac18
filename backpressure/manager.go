// Package backpressure bounds how many operations run at once.
//
// A Manager admits up to a fixed number of concurrent calls and parks
// the rest in a strict FIFO queue. Each released slot is handed to the
// longest-waiting caller, so admission order matches arrival order.
package backpressure

import (
	"context"
	"log/slog"
	"sync"
)

// Status is a point-in-time snapshot of manager load.
type Status struct {
	ActiveJobs     int `json:"active_jobs"`
	QueuedJobs     int `json:"queued_jobs"`
	MaxConcurrency int `json:"max_concurrency"`
}

// Manager limits concurrent execution to a fixed ceiling.
type Manager struct {
	max    int
	logger *slog.Logger

	mu      sync.Mutex
	active  int
	waiters []chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager admitting at most maxConcurrency concurrent
// calls. Values below 1 are clamped to 1.
func New(maxConcurrency int, opts ...Option) *Manager {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	m := &Manager{max: maxConcurrency}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Execute runs fn once a slot is free, waiting in FIFO order behind
// earlier callers. It returns ctx.Err if the context is cancelled
// before a slot is granted; once fn starts it runs to completion and
// its error is returned as-is.
func (m *Manager) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()
	return fn(ctx)
}

// Status reports current load.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		ActiveJobs:     m.active,
		QueuedJobs:     len(m.waiters),
		MaxConcurrency: m.max,
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	m.mu.Lock()
	if m.active < m.max {
		m.active++
		m.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	m.waiters = append(m.waiters, ready)
	queued := len(m.waiters)
	m.mu.Unlock()

	m.logger.Debug("job queued by backpressure manager",
		slog.Int("queued", queued),
		slog.Int("max_concurrency", m.max))

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		for i, w := range m.waiters {
			if w == ready {
				m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
				m.mu.Unlock()
				return ctx.Err()
			}
		}
		m.mu.Unlock()
		// The slot was granted while we were cancelling. Hand it to
		// the next waiter so it is not lost.
		m.release()
		return ctx.Err()
	}
}

// release passes the slot to the head of the queue, or frees it when
// nobody is waiting. The active count is unchanged on a hand-over: the
// slot moves from one caller to the next.
func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.waiters) > 0 {
		ready := m.waiters[0]
		m.waiters = m.waiters[1:]
		close(ready)
		return
	}
	m.active--
}
