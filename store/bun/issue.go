package bunstore

import (
	"context"
	"fmt"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
)

// CreateIssue persists a new issue.
func (s *Store) CreateIssue(ctx context.Context, iss *issue.Issue) error {
	m := toIssueModel(iss)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: create issue: %w", err)
	}
	return nil
}

// GetIssue retrieves an issue by ID.
func (s *Store) GetIssue(ctx context.Context, issueID id.IssueID) (*issue.Issue, error) {
	m := new(issueModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", issueID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrIssueNotFound
		}
		return nil, fmt.Errorf("courier/bun: get issue: %w", err)
	}
	return fromIssueModel(m)
}

// UpdateIssueStatus sets the status of an existing issue.
func (s *Store) UpdateIssueStatus(ctx context.Context, issueID id.IssueID, status issue.Status) error {
	res, err := s.db.NewUpdate().
		TableExpr("courier_issues").
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", issueID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: update issue status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return courier.ErrIssueNotFound
	}
	return nil
}

// ListIssues returns issues ordered by creation time, newest first.
func (s *Store) ListIssues(ctx context.Context, opts issue.ListOpts) ([]*issue.Issue, error) {
	var models []issueModel
	q := s.db.NewSelect().Model(&models).
		Order("created_at DESC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/bun: list issues: %w", err)
	}

	issues := make([]*issue.Issue, 0, len(models))
	for i := range models {
		iss, convErr := fromIssueModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("courier/bun: list issues convert: %w", convErr)
		}
		issues = append(issues, iss)
	}
	return issues, nil
}
