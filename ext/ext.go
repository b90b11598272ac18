// Package ext defines the extension system for Courier.
//
// Extensions are notified of lifecycle events and can react to them —
// writing audit logs, closing issues, recording metrics. Each
// lifecycle hook is a separate interface so extensions opt in only to
// the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s completed in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Issue Lifecycle Hooks
//
//   - [IssueCreated] — a broadcast issue was created and its jobs materialized
//   - [IssueClosed] — every job of an issue reached a terminal status
//
// # Job Lifecycle Hooks
//
//   - [JobEnqueued] — a delivery job was accepted into the queue
//   - [JobStarted] — a worker claimed the job and began the send
//   - [JobCompleted] — the send succeeded
//   - [JobFailed] — the send failed and the job was marked failed
//
// # Other Hooks
//
//   - [Shutdown] — Courier is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext

import (
	"context"
	"time"

	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Issue lifecycle hooks
// ──────────────────────────────────────────────────

// IssueCreated is called after an issue and its delivery jobs exist.
type IssueCreated interface {
	OnIssueCreated(ctx context.Context, iss *issue.Issue, jobCount int) error
}

// IssueClosed is called when the last job of an issue goes terminal.
type IssueClosed interface {
	OnIssueClosed(ctx context.Context, iss *issue.Issue) error
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobEnqueued is called after a job is successfully enqueued.
type JobEnqueued interface {
	OnJobEnqueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a worker claims a job and begins the send.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job's send fails and the job is marked
// failed.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
