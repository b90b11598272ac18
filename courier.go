package courier

import (
	"context"
	"log/slog"
)

// Option configures a Courier.
type Option func(*Courier) error

// Storer is the minimal store interface held by the Courier.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Courier is the central coordinator for broadcast delivery: it holds the
// store, the worker pool, and the lifecycle of both.
//
// Create one with New() and functional options, then use engine.Build to
// wire the orchestrator, guards, and workers on top of it.
type Courier struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	pool       poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Courier with the given options.
func New(opts ...Option) (*Courier, error) {
	c := &Courier{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Logger returns the courier's logger.
func (c *Courier) Logger() *slog.Logger { return c.logger }

// Store returns the courier's store.
func (c *Courier) Store() Storer { return c.store }

// Config returns a copy of the courier's configuration.
func (c *Courier) Config() Config { return c.config }

// SetPool sets the worker pool (called by engine.Build).
func (c *Courier) SetPool(p poolRunner) { c.pool = p }

// SetExtensions sets the extension emitter (called by engine.Build).
func (c *Courier) SetExtensions(e extensionEmitter) { c.extensions = e }

// Start begins job processing.
func (c *Courier) Start(ctx context.Context) error {
	if c.pool == nil {
		return ErrNotBuilt
	}
	if err := c.pool.Start(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

// Stop gracefully shuts down the courier.
func (c *Courier) Stop(ctx context.Context) error {
	if c.pool != nil && c.started {
		if err := c.pool.Stop(ctx); err != nil {
			c.logger.Error("pool stop error", "error", err)
		}
	}
	if c.extensions != nil {
		c.extensions.EmitShutdown(ctx)
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent sends.
func WithConcurrency(n int) Option {
	return func(c *Courier) error {
		c.config.Concurrency = n
		return nil
	}
}

// WithLogger sets the structured logger for the courier.
func WithLogger(l *slog.Logger) Option {
	return func(c *Courier) error {
		c.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the courier.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(c *Courier) error {
		c.store = s
		return nil
	}
}

// WithConfig replaces the entire configuration.
func WithConfig(cfg Config) Option {
	return func(c *Courier) error {
		c.config = cfg
		return nil
	}
}
