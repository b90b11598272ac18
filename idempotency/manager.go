// Package idempotency provides deterministic dedupe keys and TTL-scoped
// execute-once semantics for broadcast operations.
//
// Two implementations are provided: [Manager], an in-process map suitable
// for a single worker process, and [RedisManager], which performs the
// check-and-set atomically in Redis for horizontally scaled deployments.
//
// The in-process Manager holds its check and its reservation under one
// lock, so duplicate detection is atomic within a single process. It is
// still per-process state: multi-instance deployments must rely on the
// durable job uniqueness constraint (issue, subscriber) as the source of
// truth for dedupe, or use RedisManager.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
)

// Fn is the operation guarded by an idempotency key.
type Fn func(ctx context.Context) (any, error)

// ExecuteOption configures a single Execute call.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	returnCached bool
}

// WithReturnCached makes Execute return the cached result of the first
// invocation instead of failing with courier.ErrDuplicateOperation when
// the key is fresh.
func WithReturnCached() ExecuteOption {
	return func(o *executeOptions) { o.returnCached = true }
}

// GenerateKey canonicalizes an operation name and its parameters into one
// deterministic key string. Parameters are JSON-serialized in order, so
// callers must pass them in a stable order. Include a coarse time bucket
// (for example the calendar day) when the intent is "don't repeat this
// operation today".
func GenerateKey(operation string, params ...any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		// Marshal of plain strings/numbers cannot fail; fall back to the
		// raw fmt representation for anything exotic.
		encoded = fmt.Appendf(nil, "%v", params)
	}
	return operation + ":" + string(encoded)
}

type entry struct {
	timestamp time.Time
	result    any
	hasResult bool
}

// Manager is the in-process idempotency key cache. Construct it at
// startup with New, call Start to launch the background sweep, and Stop
// during shutdown.
type Manager struct {
	ttl    time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	keys map[string]entry

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a Manager whose keys stay fresh for ttl.
func New(ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		ttl:    ttl,
		logger: slog.Default(),
		keys:   make(map[string]entry),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured key freshness window.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Start launches the background sweep that purges stale entries every
// TTL/2 to bound memory. It returns immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	m.wg.Add(1)
	go m.sweepLoop()
}

// Stop terminates the background sweep and waits for it to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

// Execute runs fn exactly once per key within the TTL window.
//
// If the key exists and is fresh: with WithReturnCached and a cached
// result present, the cached result is returned; otherwise the call fails
// with courier.ErrDuplicateOperation. fn is never invoked in either case.
//
// Otherwise fn runs. On success the result is cached under the key; on
// failure the key is evicted immediately (failures are never cached) and
// the error is returned.
func (m *Manager) Execute(ctx context.Context, key string, fn Fn, opts ...ExecuteOption) (any, error) {
	var eo executeOptions
	for _, opt := range opts {
		opt(&eo)
	}

	m.mu.Lock()
	if e, ok := m.keys[key]; ok {
		if time.Since(e.timestamp) < m.ttl {
			m.mu.Unlock()
			m.logger.Debug("idempotent operation detected", slog.String("key", key))
			if eo.returnCached && e.hasResult {
				return e.result, nil
			}
			return nil, fmt.Errorf("%w: %s", courier.ErrDuplicateOperation, key)
		}
	}
	// Reserve the key under the same lock as the existence check, so a
	// concurrent Execute with the same key fails as a duplicate instead
	// of racing fn. The reservation carries no result yet; it is
	// replaced on success and evicted on failure.
	m.keys[key] = entry{timestamp: time.Now()}
	m.mu.Unlock()

	result, err := fn(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		// Failures are never cached.
		delete(m.keys, key)
		return nil, err
	}
	m.keys[key] = entry{timestamp: time.Now(), result: result, hasResult: true}
	return result, nil
}

// Has reports whether key exists and is fresh, lazily evicting an
// expired entry before answering.
func (m *Manager) Has(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.keys[key]
	if !ok {
		return false
	}
	if time.Since(e.timestamp) >= m.ttl {
		delete(m.keys, key)
		return false
	}
	return true
}

// Len returns the number of cached keys, expired entries included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	interval := m.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	now := time.Now()
	for key, e := range m.keys {
		if now.Sub(e.timestamp) >= m.ttl {
			delete(m.keys, key)
		}
	}
	size := len(m.keys)
	m.mu.Unlock()

	m.logger.Debug("idempotency cache swept", slog.Int("size", size))
}
