package bunstore

import (
	"context"
	"fmt"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/job"
)

// CreateJob persists a new job in pending state. The unique index on
// (issue_id, subscriber_id) makes duplicate pairs surface as
// courier.ErrJobAlreadyExists.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return courier.ErrJobAlreadyExists
		}
		return fmt.Errorf("courier/bun: create job: %w", err)
	}
	return nil
}

// ClaimJob atomically transitions a pending job to processing via a
// single conditional UPDATE. Losing the claim (the job was already
// taken or is not pending) observes zero affected rows and surfaces
// courier.ErrJobNotFound.
func (s *Store) ClaimJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) (*job.Job, error) {
	var models []jobModel
	_, err := s.db.NewRaw(`
		UPDATE courier_jobs
		SET status = 'processing', worker_id = ?1, started_at = NOW(), updated_at = NOW()
		WHERE id = ?0 AND status = 'pending'
		RETURNING *`,
		jobID.String(), workerID.String(),
	).Exec(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: claim job: %w", err)
	}
	if len(models) == 0 {
		return nil, courier.ErrJobNotFound
	}
	return fromJobModel(&models[0])
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrJobNotFound
		}
		return nil, fmt.Errorf("courier/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: update job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return courier.ErrJobNotFound
	}
	return nil
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("status = ?", string(status))

	if !opts.IssueID.IsNil() {
		q = q.Where("issue_id = ?", opts.IssueID.String())
	}

	q = q.Order("created_at ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/bun: list jobs by status: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("courier/bun: list jobs convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// NextPending returns up to limit pending jobs, oldest first.
func (s *Store) NextPending(ctx context.Context, limit int) ([]*job.Job, error) {
	return s.ListJobsByStatus(ctx, job.StatusPending, job.ListOpts{Limit: limit})
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := s.db.NewSelect().TableExpr("courier_jobs")

	if !opts.IssueID.IsNil() {
		q = q.Where("issue_id = ?", opts.IssueID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("courier/bun: count jobs: %w", err)
	}
	return int64(count), nil
}
