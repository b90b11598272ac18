package issue

import (
	"context"

	"github.com/squidi0n/fluxao-sub000/id"
)

// ListOpts controls pagination for issue list queries.
type ListOpts struct {
	// Limit is the maximum number of issues to return. Zero means no limit.
	Limit int
	// Offset is the number of issues to skip.
	Offset int
}

// Store defines the persistence contract for issues.
type Store interface {
	// CreateIssue persists a new issue.
	CreateIssue(ctx context.Context, iss *Issue) error

	// GetIssue retrieves an issue by ID.
	GetIssue(ctx context.Context, issueID id.IssueID) (*Issue, error)

	// UpdateIssueStatus sets the status of an existing issue.
	UpdateIssueStatus(ctx context.Context, issueID id.IssueID, status Status) error

	// ListIssues returns issues ordered by creation time, newest first.
	ListIssues(ctx context.Context, opts ListOpts) ([]*Issue, error)
}
