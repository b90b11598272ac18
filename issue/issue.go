// Package issue defines the broadcast issue entity: one message definition
// (subject + body) targeted at a subscriber set. An issue fans out to many
// per-subscriber jobs; its delivery outcome is read from job aggregates,
// not from the issue status itself.
package issue

import (
	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
)

// Status represents the lifecycle status of an issue.
type Status string

const (
	// StatusSending means jobs have been materialized and dispatch is in
	// progress or pending. The status is not advanced automatically; use
	// the issue_hook extension to close issues when all jobs are terminal.
	StatusSending Status = "sending"
	// StatusNoSubscribers means the target set resolved to zero
	// subscribers and no jobs were created.
	StatusNoSubscribers Status = "no_subscribers"
	// StatusClosed means every job for this issue reached a terminal
	// state. Set only by the closing hook, never by the dispatch path.
	StatusClosed Status = "closed"
)

// Target selects which subscribers an issue is broadcast to.
type Target string

const (
	// TargetAll broadcasts to every subscriber regardless of status.
	TargetAll Target = "all"
	// TargetVerified broadcasts only to verified subscribers.
	TargetVerified Target = "verified"
)

// Issue is one broadcast message definition.
type Issue struct {
	courier.Entity

	ID      id.IssueID `json:"id"`
	Subject string     `json:"subject"`
	Body    string     `json:"body"`
	Status  Status     `json:"status"`
}
