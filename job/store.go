package job

import (
	"context"

	"github.com/squidi0n/fluxao-sub000/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// IssueID filters by issue. Nil means all issues.
	IssueID id.IssueID
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// IssueID filters by issue. Nil means all issues.
	IssueID id.IssueID
	// Status filters by job status. Empty means all statuses.
	Status Status
}

// Counts aggregates job totals per status for an issue (or globally).
type Counts struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// Store defines the persistence contract for delivery jobs.
//
// Implementations must enforce uniqueness on (IssueID, SubscriberID) and
// report violations from CreateJob as courier.ErrJobAlreadyExists — the
// durable source of truth for dedupe under horizontal scaling.
type Store interface {
	// CreateJob persists a new job in pending state. Returns
	// courier.ErrJobAlreadyExists when a job for the same
	// (issue, subscriber) pair exists.
	CreateJob(ctx context.Context, j *Job) error

	// ClaimJob atomically transitions a pending job to processing and
	// assigns it to the given worker. It must be implemented as a single
	// conditional update observing the affected-row count; when the job
	// is no longer pending it returns courier.ErrJobNotFound without
	// mutating anything, guaranteeing at-most-one-worker-per-job.
	ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) (*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// ListJobsByStatus returns jobs matching the given status.
	ListJobsByStatus(ctx context.Context, status Status, opts ListOpts) ([]*Job, error)

	// NextPending returns up to limit pending jobs for the dispatch
	// loop, oldest first. Returned jobs are NOT claimed; callers must
	// claim each one through ClaimJob before mutating it.
	NextPending(ctx context.Context, limit int) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
