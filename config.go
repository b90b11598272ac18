package courier

import "time"

// Config holds configuration for the delivery pipeline.
type Config struct {
	// Concurrency is the maximum number of sends in flight at once.
	// This is the size of the backpressure semaphore.
	Concurrency int

	// PollInterval is how often workers poll for pending jobs.
	PollInterval time.Duration

	// SendTimeout is the per-send deadline applied to each transport call.
	SendTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// BatchSize is the number of dispatch items per chunk.
	BatchSize int

	// BatchDelay is the pause between chunks, respecting the transport's
	// throughput ceiling.
	BatchDelay time.Duration

	// IdempotencyTTL is how long a broadcast dedupe key stays fresh.
	IdempotencyTTL time.Duration

	// BreakerThreshold is the number of consecutive transport failures
	// that opens the circuit.
	BreakerThreshold int

	// BreakerTimeout is the cool-down before the circuit half-opens.
	BreakerTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:      5,
		PollInterval:     1 * time.Second,
		SendTimeout:      30 * time.Second,
		ShutdownTimeout:  30 * time.Second,
		BatchSize:        50,
		BatchDelay:       1 * time.Second,
		IdempotencyTTL:   60 * time.Minute,
		BreakerThreshold: 10,
		BreakerTimeout:   1 * time.Minute,
	}
}
