package job

import (
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
)

// Status represents the lifecycle state of a delivery job.
type Status string

const (
	// StatusPending means the job is waiting to be claimed by a worker.
	StatusPending Status = "pending"
	// StatusProcessing means a worker has claimed the job and owns it.
	StatusProcessing Status = "processing"
	// StatusCompleted means the send succeeded. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means the send failed. Terminal until an explicit
	// retry resets the job to pending.
	StatusFailed Status = "failed"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the per-subscriber delivery unit for one issue.
type Job struct {
	courier.Entity

	ID           id.JobID        `json:"id"`
	IssueID      id.IssueID      `json:"issue_id"`
	SubscriberID id.SubscriberID `json:"subscriber_id"`
	Status       Status          `json:"status"`
	Attempts     int             `json:"attempts"`
	Error        string          `json:"error,omitempty"`
	DeliveryID   string          `json:"delivery_id,omitempty"`
	WorkerID     id.WorkerID     `json:"worker_id,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// DedupeKey returns the stable dedupe identifier for the dispatch
// boundary: "issue:subscriber". Retries append a fresh suffix so they are
// not swallowed as duplicates of the original dispatch.
func (j *Job) DedupeKey() string {
	return j.IssueID.String() + ":" + j.SubscriberID.String()
}
