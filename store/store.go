// Package store defines the aggregate persistence interface. Each subsystem
// (issue, job, subscriber, audit) defines its own store interface.
// The composite Store composes them all. Backends: Bun (Postgres) and Memory.
package store

import (
	"context"

	"github.com/squidi0n/fluxao-sub000/audit"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
	"github.com/squidi0n/fluxao-sub000/subscriber"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface; a single backend
// (bun, memory) implements all of them.
type Store interface {
	issue.Store
	job.Store
	subscriber.Store
	subscriber.ConsentStore
	subscriber.InteractionStore
	audit.Sink

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
