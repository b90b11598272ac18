package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle
// hook and becomes the Action field of the audit event.
const (
	ActionIssueCreated = "issue.created"
	ActionIssueClosed  = "issue.closed"
	ActionJobEnqueued  = "job.enqueued"
	ActionJobStarted   = "job.started"
	ActionJobCompleted = "job.completed"
	ActionJobFailed    = "job.failed"
)

// Audit event categories group related actions.
const (
	CategoryIssue = "courier.issue"
	CategoryJob   = "courier.job"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceIssue = "issue"
	ResourceJob   = "job"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionIssueCreated,
		ActionIssueClosed,
		ActionJobEnqueued,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobFailed,
	}
}
