// Package backoff provides pluggable pacing strategies for batch
// dispatch. The dispatcher asks the strategy how long to pause after
// each chunk; strategies are stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the pause after a dispatched chunk.
type Strategy interface {
	// Delay returns how long to wait after chunk n (1-indexed).
	Delay(chunk int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of chunk number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant pacing strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear slows down steadily as the batch progresses.
// Delay = min(Initial * chunk, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear pacing strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * chunk, capped at Max.
func (l *Linear) Delay(chunk int) time.Duration {
	d := l.Initial * time.Duration(chunk)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each chunk.
// Delay = min(Initial * 2^(chunk-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential pacing strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(chunk-1), capped at Max.
func (e *Exponential) Delay(chunk int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(chunk-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter applies full jitter to an exponential base.
// Delay = random value in [0, min(Initial * 2^(chunk-1), Max)].
// Useful when several dispatchers share a downstream provider.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential pacing strategy with
// full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(chunk-1), Max)].
func (e *ExponentialWithJitter) Delay(chunk int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(chunk-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default pacing used by the dispatcher:
// a constant one second between chunks.
func DefaultStrategy() Strategy {
	return NewConstant(1 * time.Second)
}
