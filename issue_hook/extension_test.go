package issuehook_test

import (
	"context"
	"testing"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	issuehook "github.com/squidi0n/fluxao-sub000/issue_hook"
	"github.com/squidi0n/fluxao-sub000/job"
)

// fakeStore backs both the issue and job store contracts with maps.
type fakeStore struct {
	issues map[id.IssueID]*issue.Issue
	jobs   map[id.JobID]*job.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		issues: make(map[id.IssueID]*issue.Issue),
		jobs:   make(map[id.JobID]*job.Job),
	}
}

func (f *fakeStore) addIssue(status issue.Status) *issue.Issue {
	iss := &issue.Issue{
		Entity:  courier.NewEntity(),
		ID:      id.NewIssueID(),
		Subject: "Digest",
		Status:  status,
	}
	f.issues[iss.ID] = iss
	return iss
}

func (f *fakeStore) addJob(issueID id.IssueID, status job.Status) *job.Job {
	j := &job.Job{
		Entity:       courier.NewEntity(),
		ID:           id.NewJobID(),
		IssueID:      issueID,
		SubscriberID: id.NewSubscriberID(),
		Status:       status,
	}
	f.jobs[j.ID] = j
	return j
}

func (f *fakeStore) CreateIssue(_ context.Context, iss *issue.Issue) error {
	f.issues[iss.ID] = iss
	return nil
}

func (f *fakeStore) GetIssue(_ context.Context, issueID id.IssueID) (*issue.Issue, error) {
	iss, ok := f.issues[issueID]
	if !ok {
		return nil, courier.ErrIssueNotFound
	}
	return iss, nil
}

func (f *fakeStore) UpdateIssueStatus(_ context.Context, issueID id.IssueID, status issue.Status) error {
	iss, ok := f.issues[issueID]
	if !ok {
		return courier.ErrIssueNotFound
	}
	iss.Status = status
	return nil
}

func (f *fakeStore) ListIssues(_ context.Context, _ issue.ListOpts) ([]*issue.Issue, error) {
	return nil, nil
}

func (f *fakeStore) CreateJob(_ context.Context, j *job.Job) error {
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeStore) ClaimJob(_ context.Context, jobID id.JobID, _ id.WorkerID) (*job.Job, error) {
	return f.jobs[jobID], nil
}

func (f *fakeStore) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	return f.jobs[jobID], nil
}

func (f *fakeStore) UpdateJob(_ context.Context, j *job.Job) error {
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeStore) ListJobsByStatus(_ context.Context, _ job.Status, _ job.ListOpts) ([]*job.Job, error) {
	return nil, nil
}

func (f *fakeStore) NextPending(_ context.Context, _ int) ([]*job.Job, error) {
	return nil, nil
}

func (f *fakeStore) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	var n int64
	for _, j := range f.jobs {
		if opts.IssueID != id.Nil && j.IssueID != opts.IssueID {
			continue
		}
		if opts.Status != "" && j.Status != opts.Status {
			continue
		}
		n++
	}
	return n, nil
}

func TestMaybeClose_ClosesWhenAllTerminal(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	iss := st.addIssue(issue.StatusSending)
	done := st.addJob(iss.ID, job.StatusCompleted)
	st.addJob(iss.ID, job.StatusFailed)

	var closed []*issue.Issue
	e := issuehook.New(st, st, issuehook.WithClosedFunc(func(_ context.Context, iss *issue.Issue) {
		closed = append(closed, iss)
	}))

	if err := e.OnJobCompleted(context.Background(), done, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if iss.Status != issue.StatusClosed {
		t.Errorf("status = %v, want closed", iss.Status)
	}
	if len(closed) != 1 || closed[0].ID != iss.ID {
		t.Errorf("closed callbacks = %v", closed)
	}
}

func TestMaybeClose_WaitsForOutstandingJobs(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	iss := st.addIssue(issue.StatusSending)
	done := st.addJob(iss.ID, job.StatusCompleted)
	st.addJob(iss.ID, job.StatusPending)

	e := issuehook.New(st, st)
	if err := e.OnJobCompleted(context.Background(), done, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if iss.Status != issue.StatusSending {
		t.Errorf("status = %v, want still sending", iss.Status)
	}

	// Processing also blocks the close.
	st.jobs = make(map[id.JobID]*job.Job)
	done = st.addJob(iss.ID, job.StatusCompleted)
	st.addJob(iss.ID, job.StatusProcessing)
	if err := e.OnJobCompleted(context.Background(), done, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if iss.Status != issue.StatusSending {
		t.Errorf("status = %v, want still sending", iss.Status)
	}
}

func TestMaybeClose_Idempotent(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	iss := st.addIssue(issue.StatusClosed)
	failed := st.addJob(iss.ID, job.StatusFailed)

	var calls int
	e := issuehook.New(st, st, issuehook.WithClosedFunc(func(context.Context, *issue.Issue) {
		calls++
	}))

	if err := e.OnJobFailed(context.Background(), failed, nil); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}
	if calls != 0 {
		t.Errorf("callback fired on already-closed issue")
	}
}

func TestMaybeClose_IgnoresOtherIssues(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	a := st.addIssue(issue.StatusSending)
	b := st.addIssue(issue.StatusSending)
	aDone := st.addJob(a.ID, job.StatusCompleted)
	st.addJob(b.ID, job.StatusPending)

	e := issuehook.New(st, st)
	if err := e.OnJobCompleted(context.Background(), aDone, time.Second); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if a.Status != issue.StatusClosed {
		t.Errorf("issue a = %v, want closed despite b's pending job", a.Status)
	}
	if b.Status != issue.StatusSending {
		t.Errorf("issue b = %v, want untouched", b.Status)
	}
}
