// Package memory provides a fully in-memory store backend. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/audit"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
	"github.com/squidi0n/fluxao-sub000/subscriber"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ issue.Store                 = (*Store)(nil)
	_ job.Store                   = (*Store)(nil)
	_ subscriber.Store            = (*Store)(nil)
	_ subscriber.ConsentStore     = (*Store)(nil)
	_ subscriber.InteractionStore = (*Store)(nil)
	_ audit.Sink                  = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	issues      map[string]*issue.Issue
	jobs        map[string]*job.Job
	jobIndex    map[string]string // "issueID:subscriberID" -> job ID
	subscribers map[string]*subscriber.Subscriber
	emailIndex  map[string]string // email -> subscriber ID
	consents    map[string][]*subscriber.ConsentRecord
	interacts   map[string][]*subscriber.InteractionRecord
	events      []*audit.Event
	closed      bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		issues:      make(map[string]*issue.Issue),
		jobs:        make(map[string]*job.Job),
		jobIndex:    make(map[string]string),
		subscribers: make(map[string]*subscriber.Subscriber),
		emailIndex:  make(map[string]string),
		consents:    make(map[string][]*subscriber.ConsentRecord),
		interacts:   make(map[string][]*subscriber.InteractionRecord),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping succeeds until the store is closed.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return courier.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Idempotent.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Issue Store
// ──────────────────────────────────────────────────

// CreateIssue persists a new issue.
func (m *Store) CreateIssue(_ context.Context, iss *issue.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *iss
	m.issues[iss.ID.String()] = &cp
	return nil
}

// GetIssue retrieves an issue by ID.
func (m *Store) GetIssue(_ context.Context, issueID id.IssueID) (*issue.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	iss, ok := m.issues[issueID.String()]
	if !ok {
		return nil, courier.ErrIssueNotFound
	}
	cp := *iss
	return &cp, nil
}

// UpdateIssueStatus sets the status of an existing issue.
func (m *Store) UpdateIssueStatus(_ context.Context, issueID id.IssueID, status issue.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	iss, ok := m.issues[issueID.String()]
	if !ok {
		return courier.ErrIssueNotFound
	}
	iss.Status = status
	iss.UpdatedAt = time.Now().UTC()
	return nil
}

// ListIssues returns issues ordered by creation time, newest first.
func (m *Store) ListIssues(_ context.Context, opts issue.ListOpts) ([]*issue.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*issue.Issue, 0, len(m.issues))
	for _, iss := range m.issues {
		cp := *iss
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []*issue.Issue{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// CreateJob persists a new job in pending state. The (issue, subscriber)
// pair is unique; a second job for the same pair returns
// courier.ErrJobAlreadyExists.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair := j.IssueID.String() + ":" + j.SubscriberID.String()
	if _, exists := m.jobIndex[pair]; exists {
		return courier.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[j.ID.String()] = &cp
	m.jobIndex[pair] = j.ID.String()
	return nil
}

// ClaimJob atomically transitions a pending job to processing under the
// store lock. Any status other than pending returns
// courier.ErrJobNotFound without mutating the job.
func (m *Store) ClaimJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok || j.Status != job.StatusPending {
		return nil, courier.ErrJobNotFound
	}

	now := time.Now().UTC()
	j.Status = job.StatusProcessing
	j.WorkerID = workerID
	j.StartedAt = &now
	j.UpdatedAt = now

	cp := *j
	return &cp, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, courier.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob persists changes to an existing job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return courier.ErrJobNotFound
	}
	cp := *j
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = &cp
	return nil
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (m *Store) ListJobsByStatus(_ context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.Status != status {
			continue
		}
		if opts.IssueID != id.Nil && j.IssueID != opts.IssueID {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []*job.Job{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// NextPending returns up to limit pending jobs, oldest first. Returned
// jobs are copies and remain unclaimed.
func (m *Store) NextPending(ctx context.Context, limit int) ([]*job.Job, error) {
	return m.ListJobsByStatus(ctx, job.StatusPending, job.ListOpts{Limit: limit})
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, j := range m.jobs {
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

// ──────────────────────────────────────────────────
// Subscriber Store
// ──────────────────────────────────────────────────

// CreateSubscriber persists a new subscriber.
func (m *Store) CreateSubscriber(_ context.Context, s *subscriber.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.subscribers[s.ID.String()] = &cp
	m.emailIndex[strings.ToLower(s.Email)] = s.ID.String()
	return nil
}

// GetSubscriber retrieves a subscriber by ID.
func (m *Store) GetSubscriber(_ context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subscribers[subID.String()]
	if !ok {
		return nil, courier.ErrSubscriberNotFound
	}
	cp := *s
	return &cp, nil
}

// GetSubscriberByEmail retrieves a subscriber by email address.
func (m *Store) GetSubscriberByEmail(_ context.Context, email string) (*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.emailIndex[strings.ToLower(email)]
	if !ok {
		return nil, courier.ErrSubscriberNotFound
	}
	cp := *m.subscribers[key]
	return &cp, nil
}

// ListSubscribers returns subscribers matching the given options,
// oldest first.
func (m *Store) ListSubscribers(_ context.Context, opts subscriber.ListOpts) ([]*subscriber.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*subscriber.Subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// UnsubscribeSubscriber sets status=unsubscribed with timestamp and
// reason. Unsubscribing an already-unsubscribed subscriber is a no-op.
func (m *Store) UnsubscribeSubscriber(_ context.Context, subID id.SubscriberID, upd subscriber.UnsubscribeUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subscribers[subID.String()]
	if !ok {
		return courier.ErrSubscriberNotFound
	}
	if s.Status == subscriber.StatusUnsubscribed {
		return nil
	}

	now := time.Now().UTC()
	s.Status = subscriber.StatusUnsubscribed
	s.UnsubscribedAt = &now
	s.UnsubscribeReason = upd.Reason
	s.UpdatedAt = now
	return nil
}

// EraseSubscriber deletes the subscriber and all consent and interaction
// records under a single lock, so the erasure is all-or-nothing.
func (m *Store) EraseSubscriber(_ context.Context, subID id.SubscriberID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := subID.String()
	s, ok := m.subscribers[key]
	if !ok {
		return courier.ErrSubscriberNotFound
	}

	delete(m.subscribers, key)
	delete(m.emailIndex, strings.ToLower(s.Email))
	delete(m.consents, key)
	delete(m.interacts, key)
	return nil
}

// ──────────────────────────────────────────────────
// Consent Store
// ──────────────────────────────────────────────────

// AppendConsent persists a consent state change.
func (m *Store) AppendConsent(_ context.Context, rec *subscriber.ConsentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	key := rec.SubscriberID.String()
	m.consents[key] = append(m.consents[key], &cp)
	return nil
}

// ListConsents returns consent records for a subscriber, newest first.
func (m *Store) ListConsents(_ context.Context, subID id.SubscriberID) ([]*subscriber.ConsentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.consents[subID.String()]
	result := make([]*subscriber.ConsentRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		cp := *recs[i]
		result = append(result, &cp)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Interaction Store
// ──────────────────────────────────────────────────

// AppendInteraction persists a delivery/engagement event.
func (m *Store) AppendInteraction(_ context.Context, rec *subscriber.InteractionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	key := rec.SubscriberID.String()
	m.interacts[key] = append(m.interacts[key], &cp)
	return nil
}

// ListInteractions returns interaction records for a subscriber, newest
// first.
func (m *Store) ListInteractions(_ context.Context, subID id.SubscriberID) ([]*subscriber.InteractionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.interacts[subID.String()]
	result := make([]*subscriber.InteractionRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		cp := *recs[i]
		result = append(result, &cp)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Audit Sink
// ──────────────────────────────────────────────────

// Record appends an audit event.
func (m *Store) Record(_ context.Context, event *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

// Events returns a copy of all recorded audit events, oldest first.
// Test helper; not part of any store contract.
func (m *Store) Events() []*audit.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*audit.Event, len(m.events))
	for i, e := range m.events {
		cp := *e
		result[i] = &cp
	}
	return result
}
