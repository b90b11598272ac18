// Package schedule runs recurring broadcasts ("every Monday 09:00 send
// the weekly digest") on a cron tick loop. Entries live in process
// memory; there is no leader election because the pipeline runs as a
// single worker process.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
)

// EnqueueFunc is the callback the scheduler fires for a due entry.
// This breaks the import cycle: the engine provides the implementation.
type EnqueueFunc func(ctx context.Context, subject, body string, target issue.Target) error

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Entry is one recurring broadcast definition.
type Entry struct {
	courier.Entity

	ID       id.ScheduleID `json:"id"`
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	Subject  string        `json:"subject"`
	Body     string        `json:"body"`
	Target   issue.Target  `json:"target"`
	Enabled  bool          `json:"enabled"`

	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	sched cronlib.Schedule
}

// Scheduler fires due entries on a tick loop.
type Scheduler struct {
	enqueue EnqueueFunc
	logger  *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*Entry

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler that fires due entries through enqueue.
func New(enqueue EnqueueFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		enqueue:      enqueue,
		logger:       slog.Default(),
		tickInterval: 30 * time.Second,
		entries:      make(map[string]*Entry),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a recurring broadcast. The expression is validated and
// the first NextRunAt computed immediately. Re-registering an existing
// name is idempotent and returns the existing entry unchanged.
func (s *Scheduler) Register(name, expr, subject, body string, target issue.Target) (*Entry, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[name]; ok {
		return existing, nil
	}

	next := sched.Next(time.Now().UTC())
	e := &Entry{
		Entity:    courier.NewEntity(),
		ID:        id.NewScheduleID(),
		Name:      name,
		Schedule:  expr,
		Subject:   subject,
		Body:      body,
		Target:    target,
		Enabled:   true,
		NextRunAt: &next,
		sched:     sched,
	}
	s.entries[name] = e

	s.logger.Info("schedule registered",
		slog.String("name", name),
		slog.String("schedule", expr),
		slog.Time("next_run_at", next),
	)
	return e, nil
}

// Enable re-enables a disabled entry.
func (s *Scheduler) Enable(name string) error { return s.setEnabled(name, true) }

// Disable stops an entry from firing without removing it.
func (s *Scheduler) Disable(name string) error { return s.setEnabled(name, false) }

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("schedule %q: %w", name, courier.ErrScheduleNotFound)
	}
	e.Enabled = enabled
	return nil
}

// Entries returns a snapshot of all registered entries.
func (s *Scheduler) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		c := *e
		out = append(out, &c)
	}
	return out
}

// Start launches the tick loop. It returns immediately.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	s.wg.Add(1)
	go s.tickLoop()

	s.logger.Info("scheduler started", slog.Duration("tick_interval", s.tickInterval))
	return nil
}

// Stop signals the tick loop to stop and waits for it to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	now := time.Now().UTC()

	s.mu.Lock()
	due := make([]*Entry, 0)
	for _, e := range s.entries {
		if !e.Enabled || e.NextRunAt == nil || e.NextRunAt.After(now) {
			continue
		}
		due = append(due, e)
		// Advance before firing so a slow enqueue cannot double-fire.
		last := now
		next := e.sched.Next(now)
		e.LastRunAt = &last
		e.NextRunAt = &next
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fire(e)
	}
}

func (s *Scheduler) fire(e *Entry) {
	ctx := context.Background()
	if err := s.enqueue(ctx, e.Subject, e.Body, e.Target); err != nil {
		// Duplicate-broadcast rejections are expected when the tick
		// fires faster than the idempotency window.
		s.logger.Warn("scheduled enqueue failed",
			slog.String("name", e.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("schedule fired",
		slog.String("name", e.Name),
		slog.String("subject", e.Subject),
	)
}
