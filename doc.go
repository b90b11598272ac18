// Package courier provides the reliability core of a newsletter broadcast
// pipeline: it turns "send this message to N subscribers" into a
// fault-tolerant, resumable, privacy-compliant operation.
//
// Courier is designed as a library, not a service. Import it, configure a
// store, and drive broadcasts through the engine package.
//
// # Quick Start
//
//	c, err := courier.New(
//	    courier.WithStore(memStore),
//	    courier.WithConcurrency(5),
//	)
//
// # Architecture
//
// Courier follows a composable store pattern where each subsystem (issue,
// job, subscriber, audit) defines its own store interface. A single
// backend implements all of them.
//
// The dispatch path is guarded by three primitives: an idempotency
// manager deduplicating broadcast requests, a three-state circuit breaker
// isolating a failing mail transport, and a bounded-concurrency
// backpressure manager with a FIFO wait queue.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package courier
