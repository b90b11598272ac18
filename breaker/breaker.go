// Package breaker provides a three-state circuit breaker for isolating a
// failing external dependency. One breaker instance is scoped per
// critical dependency (for example, one per mail-transport provider),
// not shared globally.
package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
)

// State of the circuit.
type State string

const (
	// StateClosed means calls flow through normally.
	StateClosed State = "CLOSED"
	// StateOpen means calls fail fast without touching the dependency.
	StateOpen State = "OPEN"
	// StateHalfOpen means one trial call is permitted; its outcome
	// decides whether the circuit closes again or re-opens.
	StateHalfOpen State = "HALF_OPEN"
)

// Status is a snapshot of the breaker for observability.
type Status struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastFailureTime     time.Time `json:"last_failure_time"`
}

// Breaker wraps calls to one external dependency. After threshold
// consecutive failures it opens and fails fast for the timeout duration,
// then permits a single trial call (half-open): success closes the
// circuit, failure re-opens it.
type Breaker struct {
	name      string
	threshold int
	timeout   time.Duration
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger for the breaker.
func WithLogger(l *slog.Logger) Option {
	return func(b *Breaker) { b.logger = l }
}

// New creates a Breaker named for the dependency it guards. The circuit
// opens after threshold consecutive failures and stays open for timeout.
func New(name string, threshold int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		logger:    slog.Default(),
		state:     StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn through the circuit.
//
// When the circuit is open and the cool-down has not elapsed, Execute
// fails fast with courier.ErrCircuitOpen and fn is never invoked — the
// downstream dependency is left alone and no concurrency permit is
// wasted. Otherwise fn runs and its outcome drives the state machine.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.lastFailure) > b.timeout {
			b.state = StateHalfOpen
			b.logger.Info("circuit breaker entering HALF_OPEN state",
				slog.String("breaker", b.name),
			)
		} else {
			b.mu.Unlock()
			return fmt.Errorf("%w: %s", courier.ErrCircuitOpen, b.name)
		}
	}
	b.mu.Unlock()

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.logger.Info("circuit breaker CLOSED", slog.String("breaker", b.name))
	}
	b.failures = 0
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen {
		// The trial call failed; straight back to open.
		b.state = StateOpen
		b.logger.Warn("circuit breaker re-OPEN after failed trial",
			slog.String("breaker", b.name),
		)
		return
	}

	if b.failures >= b.threshold {
		b.state = StateOpen
		b.logger.Error("circuit breaker OPEN - threshold exceeded",
			slog.String("breaker", b.name),
			slog.Int("failures", b.failures),
		)
	}
}

// GetState returns a snapshot of the breaker state.
func (b *Breaker) GetState() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		LastFailureTime:     b.lastFailure,
	}
}

// Reset forces the circuit closed and clears the failure count. Manual
// operator override.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.lastFailure = time.Time{}
	b.logger.Info("circuit breaker manually reset", slog.String("breaker", b.name))
}
