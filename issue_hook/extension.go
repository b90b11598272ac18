// Package issuehook is a Courier extension that closes a broadcast
// issue once every one of its delivery jobs has reached a terminal
// status.
//
// The worker emits JobCompleted/JobFailed events per job; this
// extension reacts to them by counting the issue's remaining pending
// and processing jobs and, when both hit zero, flipping the issue to
// closed. An optional callback lets the host observe the close.
package issuehook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/squidi0n/fluxao-sub000/ext"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.JobCompleted = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
)

// ClosedFunc is invoked after an issue transitions to closed.
type ClosedFunc func(ctx context.Context, iss *issue.Issue)

// Extension closes issues whose jobs are all terminal.
type Extension struct {
	issues   issue.Store
	jobs     job.Store
	onClosed ClosedFunc
	logger   *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets a custom logger for the extension.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithClosedFunc registers a callback invoked after each close.
func WithClosedFunc(fn ClosedFunc) Option {
	return func(e *Extension) { e.onClosed = fn }
}

// New creates an Extension reading job counts from jobs and closing
// issues through issues.
func New(issues issue.Store, jobs job.Store, opts ...Option) *Extension {
	e := &Extension{
		issues: issues,
		jobs:   jobs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "issue-hook" }

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	return e.maybeClose(ctx, j.IssueID)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	return e.maybeClose(ctx, j.IssueID)
}

// maybeClose closes the issue when no pending or processing jobs
// remain. Re-checking on every terminal event makes the close
// idempotent: a second event after the close finds the issue already
// closed and does nothing.
func (e *Extension) maybeClose(ctx context.Context, issueID id.IssueID) error {
	pending, err := e.jobs.CountJobs(ctx, job.CountOpts{IssueID: issueID, Status: job.StatusPending})
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	processing, err := e.jobs.CountJobs(ctx, job.CountOpts{IssueID: issueID, Status: job.StatusProcessing})
	if err != nil {
		return fmt.Errorf("count processing: %w", err)
	}
	if pending > 0 || processing > 0 {
		return nil
	}

	iss, err := e.issues.GetIssue(ctx, issueID)
	if err != nil {
		return fmt.Errorf("get issue: %w", err)
	}
	if iss.Status != issue.StatusSending {
		return nil
	}

	if err := e.issues.UpdateIssueStatus(ctx, issueID, issue.StatusClosed); err != nil {
		return fmt.Errorf("close issue: %w", err)
	}
	iss.Status = issue.StatusClosed

	e.logger.Info("issue closed, all jobs terminal",
		slog.String("issue_id", issueID.String()),
		slog.String("subject", iss.Subject))

	if e.onClosed != nil {
		e.onClosed(ctx, iss)
	}
	return nil
}
