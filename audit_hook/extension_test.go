package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/audit"
	ah "github.com/squidi0n/fluxao-sub000/audit_hook"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
)

// ── Mock sink ────────────────────────────────────────

// mockSink captures audit events for verification.
type mockSink struct {
	mu     sync.Mutex
	events []*audit.Event
	err    error
}

func (m *mockSink) Record(_ context.Context, evt *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *mockSink) last() *audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// ── Test helpers ─────────────────────────────────────

func newTestJob() *job.Job {
	return &job.Job{
		Entity:       courier.NewEntity(),
		ID:           id.NewJobID(),
		IssueID:      id.NewIssueID(),
		SubscriberID: id.NewSubscriberID(),
		Status:       job.StatusPending,
	}
}

func newTestIssue() *issue.Issue {
	return &issue.Issue{
		Entity:  courier.NewEntity(),
		ID:      id.NewIssueID(),
		Subject: "Weekly Digest",
		Status:  issue.StatusSending,
	}
}

// ── Tests ────────────────────────────────────────────

func TestOnIssueCreated(t *testing.T) {
	t.Parallel()
	sink := &mockSink{}
	e := ah.New(sink)
	iss := newTestIssue()

	if err := e.OnIssueCreated(context.Background(), iss, 42); err != nil {
		t.Fatalf("OnIssueCreated: %v", err)
	}

	evt := sink.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionIssueCreated {
		t.Errorf("action = %q", evt.Action)
	}
	if evt.Resource != ah.ResourceIssue || evt.ResourceID != iss.ID.String() {
		t.Errorf("resource = %q/%q", evt.Resource, evt.ResourceID)
	}
	if evt.Severity != audit.SeverityInfo || evt.Outcome != audit.OutcomeSuccess {
		t.Errorf("severity/outcome = %q/%q", evt.Severity, evt.Outcome)
	}
	if got := evt.Metadata["job_count"]; got != 42 {
		t.Errorf("job_count = %v", got)
	}
}

func TestOnJobCompleted(t *testing.T) {
	t.Parallel()
	sink := &mockSink{}
	e := ah.New(sink)
	j := newTestJob()
	j.DeliveryID = "prov-123"

	if err := e.OnJobCompleted(context.Background(), j, 1500*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	evt := sink.last()
	if evt.Action != ah.ActionJobCompleted {
		t.Errorf("action = %q", evt.Action)
	}
	if got := evt.Metadata["elapsed_ms"]; got != int64(1500) {
		t.Errorf("elapsed_ms = %v", got)
	}
	if got := evt.Metadata["delivery_id"]; got != "prov-123" {
		t.Errorf("delivery_id = %v", got)
	}
}

func TestOnJobFailed_CriticalWithReason(t *testing.T) {
	t.Parallel()
	sink := &mockSink{}
	e := ah.New(sink)
	j := newTestJob()
	j.Attempts = 2

	sendErr := errors.New("smtp 454")
	if err := e.OnJobFailed(context.Background(), j, sendErr); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	evt := sink.last()
	if evt.Severity != audit.SeverityCritical || evt.Outcome != audit.OutcomeFailure {
		t.Errorf("severity/outcome = %q/%q", evt.Severity, evt.Outcome)
	}
	if evt.Reason != "smtp 454" {
		t.Errorf("reason = %q", evt.Reason)
	}
	if got := evt.Metadata["attempts"]; got != 2 {
		t.Errorf("attempts = %v", got)
	}
}

func TestWithActions_Filters(t *testing.T) {
	t.Parallel()
	sink := &mockSink{}
	e := ah.New(sink, ah.WithActions(ah.ActionJobFailed))
	ctx := context.Background()

	_ = e.OnJobEnqueued(ctx, newTestJob())
	_ = e.OnJobStarted(ctx, newTestJob())
	_ = e.OnIssueClosed(ctx, newTestIssue())
	_ = e.OnJobFailed(ctx, newTestJob(), errors.New("nope"))

	if sink.count() != 1 {
		t.Fatalf("events = %d, want only the failed action", sink.count())
	}
	if sink.last().Action != ah.ActionJobFailed {
		t.Errorf("action = %q", sink.last().Action)
	}
}

func TestSinkError_NotPropagated(t *testing.T) {
	t.Parallel()
	sink := &mockSink{err: errors.New("sink down")}
	e := ah.New(sink)

	if err := e.OnJobEnqueued(context.Background(), newTestJob()); err != nil {
		t.Errorf("sink failure propagated: %v", err)
	}
}

func TestAllActions(t *testing.T) {
	t.Parallel()
	if got := len(ah.AllActions()); got != 6 {
		t.Errorf("AllActions = %d entries, want 6", got)
	}
}
