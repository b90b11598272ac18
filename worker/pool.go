package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/job"
)

// Pool manages a set of worker goroutines that poll for pending
// delivery jobs and run them through the Executor.
type Pool struct {
	jobs         job.Store
	executor     *Executor
	concurrency  int
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of polling worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how often idle workers poll for new jobs.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithPoolLogger sets the structured logger.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

// NewPool creates a worker pool.
func NewPool(jobs job.Store, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		jobs:         jobs,
		executor:     executor,
		concurrency:  1,
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
		activeJobs:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.pollLoop()
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If the context has a deadline, active jobs are cancelled when time
// runs out.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// pollLoop is run by each worker goroutine.
func (p *Pool) pollLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		pending, err := p.jobs.NextPending(context.Background(), 1)
		if err != nil {
			p.logger.Error("poll error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}

		if len(pending) == 0 {
			p.sleep()
			continue
		}

		j := pending[0]

		ctx, cancel := context.WithCancel(context.Background())
		p.trackJob(j.ID.String(), cancel)

		execErr := p.executor.Execute(ctx, j.ID, p.workerID)
		switch {
		case execErr == nil:
		case errors.Is(execErr, courier.ErrJobNotFound):
			// Another worker won the claim.
		default:
			p.logger.Debug("job execution failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(j.ID.String())
		cancel()
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
