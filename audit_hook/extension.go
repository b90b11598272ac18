package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/audit"
	"github.com/squidi0n/fluxao-sub000/ext"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.IssueCreated = (*Extension)(nil)
	_ ext.IssueClosed  = (*Extension)(nil)
	_ ext.JobEnqueued  = (*Extension)(nil)
	_ ext.JobStarted   = (*Extension)(nil)
	_ ext.JobCompleted = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
)

// Extension bridges Courier lifecycle events to the audit trail.
// Each lifecycle hook emits a structured audit event through the
// [audit.Sink].
type Extension struct {
	sink    audit.Sink
	enabled map[string]bool // nil = all enabled
	logger  *slog.Logger
}

// New creates an Extension that emits audit events through sink.
func New(sink audit.Sink, opts ...Option) *Extension {
	e := &Extension{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Issue lifecycle hooks ───────────────────────────

// OnIssueCreated implements ext.IssueCreated.
func (e *Extension) OnIssueCreated(ctx context.Context, iss *issue.Issue, jobCount int) error {
	return e.record(ctx, ActionIssueCreated, audit.SeverityInfo, audit.OutcomeSuccess,
		ResourceIssue, iss.ID.String(), CategoryIssue, nil,
		"subject", iss.Subject,
		"status", string(iss.Status),
		"job_count", jobCount,
	)
}

// OnIssueClosed implements ext.IssueClosed.
func (e *Extension) OnIssueClosed(ctx context.Context, iss *issue.Issue) error {
	return e.record(ctx, ActionIssueClosed, audit.SeverityInfo, audit.OutcomeSuccess,
		ResourceIssue, iss.ID.String(), CategoryIssue, nil,
		"subject", iss.Subject,
	)
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (e *Extension) OnJobEnqueued(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobEnqueued, audit.SeverityInfo, audit.OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"issue_id", j.IssueID.String(),
		"subscriber_id", j.SubscriberID.String(),
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobStarted, audit.SeverityInfo, audit.OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"issue_id", j.IssueID.String(),
		"worker_id", j.WorkerID.String(),
	)
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobCompleted, audit.SeverityInfo, audit.OutcomeSuccess,
		ResourceJob, j.ID.String(), CategoryJob, nil,
		"issue_id", j.IssueID.String(),
		"delivery_id", j.DeliveryID,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, jobErr error) error {
	return e.record(ctx, ActionJobFailed, audit.SeverityCritical, audit.OutcomeFailure,
		ResourceJob, j.ID.String(), CategoryJob, jobErr,
		"issue_id", j.IssueID.String(),
		"subscriber_id", j.SubscriberID.String(),
		"attempts", j.Attempts,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &audit.Event{
		Entity:     courier.NewEntity(),
		ID:         id.NewAuditID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.sink.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
