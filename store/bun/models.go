package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/audit"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
	"github.com/squidi0n/fluxao-sub000/subscriber"
)

// ── Issue model ───────────────────────────────────────────────────

type issueModel struct {
	bun.BaseModel `bun:"table:courier_issues"`

	ID        string    `bun:"id,pk"`
	Subject   string    `bun:"subject,notnull"`
	Body      string    `bun:"body,notnull"`
	Status    string    `bun:"status,notnull,default:'sending'"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toIssueModel(iss *issue.Issue) *issueModel {
	return &issueModel{
		ID:        iss.ID.String(),
		Subject:   iss.Subject,
		Body:      iss.Body,
		Status:    string(iss.Status),
		CreatedAt: iss.CreatedAt,
		UpdatedAt: iss.UpdatedAt,
	}
}

func fromIssueModel(m *issueModel) (*issue.Issue, error) {
	parsedID, err := id.ParseIssueID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse issue id %q: %w", m.ID, err)
	}
	return &issue.Issue{
		Entity: courier.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:      parsedID,
		Subject: m.Subject,
		Body:    m.Body,
		Status:  issue.Status(m.Status),
	}, nil
}

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:courier_jobs"`

	ID           string     `bun:"id,pk"`
	IssueID      string     `bun:"issue_id,notnull"`
	SubscriberID string     `bun:"subscriber_id,notnull"`
	Status       string     `bun:"status,notnull,default:'pending'"`
	Attempts     int        `bun:"attempts,notnull,default:0"`
	Error        string     `bun:"error"`
	DeliveryID   string     `bun:"delivery_id"`
	WorkerID     string     `bun:"worker_id"`
	StartedAt    *time.Time `bun:"started_at"`
	CompletedAt  *time.Time `bun:"completed_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:           j.ID.String(),
		IssueID:      j.IssueID.String(),
		SubscriberID: j.SubscriberID.String(),
		Status:       string(j.Status),
		Attempts:     j.Attempts,
		Error:        j.Error,
		DeliveryID:   j.DeliveryID,
		WorkerID:     j.WorkerID.String(),
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse job id %q: %w", m.ID, err)
	}
	issueID, err := id.ParseIssueID(m.IssueID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse issue id %q: %w", m.IssueID, err)
	}
	subID, err := id.ParseSubscriberID(m.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse subscriber id %q: %w", m.SubscriberID, err)
	}

	j := &job.Job{
		Entity: courier.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           parsedID,
		IssueID:      issueID,
		SubscriberID: subID,
		Status:       job.Status(m.Status),
		Attempts:     m.Attempts,
		Error:        m.Error,
		DeliveryID:   m.DeliveryID,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}

	if m.WorkerID != "" {
		parsedWorker, wErr := id.ParseWorkerID(m.WorkerID)
		if wErr == nil {
			j.WorkerID = parsedWorker
		}
	}

	return j, nil
}

// ── Subscriber models ─────────────────────────────────────────────

type subscriberModel struct {
	bun.BaseModel `bun:"table:courier_subscribers"`

	ID                string     `bun:"id,pk"`
	Email             string     `bun:"email,notnull"`
	Status            string     `bun:"status,notnull,default:'pending'"`
	AllowTracking     bool       `bun:"allow_tracking,notnull,default:false"`
	UnsubscribedAt    *time.Time `bun:"unsubscribed_at"`
	UnsubscribeReason string     `bun:"unsubscribe_reason"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toSubscriberModel(sub *subscriber.Subscriber) *subscriberModel {
	return &subscriberModel{
		ID:                sub.ID.String(),
		Email:             sub.Email,
		Status:            string(sub.Status),
		AllowTracking:     sub.AllowTracking,
		UnsubscribedAt:    sub.UnsubscribedAt,
		UnsubscribeReason: sub.UnsubscribeReason,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
}

func fromSubscriberModel(m *subscriberModel) (*subscriber.Subscriber, error) {
	parsedID, err := id.ParseSubscriberID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse subscriber id %q: %w", m.ID, err)
	}
	return &subscriber.Subscriber{
		Entity: courier.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                parsedID,
		Email:             m.Email,
		Status:            subscriber.Status(m.Status),
		AllowTracking:     m.AllowTracking,
		UnsubscribedAt:    m.UnsubscribedAt,
		UnsubscribeReason: m.UnsubscribeReason,
	}, nil
}

type consentModel struct {
	bun.BaseModel `bun:"table:courier_consents"`

	ID           string    `bun:"id,pk"`
	SubscriberID string    `bun:"subscriber_id,notnull"`
	Type         string    `bun:"type,notnull"`
	Given        bool      `bun:"given,notnull"`
	Method       string    `bun:"method"`
	HashedIP     string    `bun:"hashed_ip"`
	UserAgent    string    `bun:"user_agent"`
	Version      string    `bun:"version"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toConsentModel(rec *subscriber.ConsentRecord) *consentModel {
	return &consentModel{
		ID:           rec.ID.String(),
		SubscriberID: rec.SubscriberID.String(),
		Type:         string(rec.Type),
		Given:        rec.Given,
		Method:       rec.Method,
		HashedIP:     rec.HashedIP,
		UserAgent:    rec.UserAgent,
		Version:      rec.Version,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromConsentModel(m *consentModel) (*subscriber.ConsentRecord, error) {
	parsedID, err := id.ParseConsentID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse consent id %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriberID(m.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse subscriber id %q: %w", m.SubscriberID, err)
	}
	return &subscriber.ConsentRecord{
		Entity: courier.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           parsedID,
		SubscriberID: subID,
		Type:         subscriber.ConsentType(m.Type),
		Given:        m.Given,
		Method:       m.Method,
		HashedIP:     m.HashedIP,
		UserAgent:    m.UserAgent,
		Version:      m.Version,
	}, nil
}

type interactionModel struct {
	bun.BaseModel `bun:"table:courier_interactions"`

	ID           string         `bun:"id,pk"`
	SubscriberID string         `bun:"subscriber_id,notnull"`
	CampaignID   string         `bun:"campaign_id"`
	Type         string         `bun:"type,notnull"`
	Value        string         `bun:"value"`
	Metadata     map[string]any `bun:"metadata,type:jsonb"`
	Timestamp    time.Time      `bun:"timestamp,notnull,default:current_timestamp"`
	CreatedAt    time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

func toInteractionModel(rec *subscriber.InteractionRecord) *interactionModel {
	return &interactionModel{
		ID:           rec.ID.String(),
		SubscriberID: rec.SubscriberID.String(),
		CampaignID:   rec.CampaignID.String(),
		Type:         string(rec.Type),
		Value:        rec.Value,
		Metadata:     rec.Metadata,
		Timestamp:    rec.Timestamp,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromInteractionModel(m *interactionModel) (*subscriber.InteractionRecord, error) {
	parsedID, err := id.ParseInteractionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse interaction id %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriberID(m.SubscriberID)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: parse subscriber id %q: %w", m.SubscriberID, err)
	}

	rec := &subscriber.InteractionRecord{
		Entity: courier.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           parsedID,
		SubscriberID: subID,
		Type:         subscriber.InteractionType(m.Type),
		Value:        m.Value,
		Metadata:     m.Metadata,
		Timestamp:    m.Timestamp,
	}

	if m.CampaignID != "" {
		campaignID, cErr := id.ParseIssueID(m.CampaignID)
		if cErr == nil {
			rec.CampaignID = campaignID
		}
	}

	return rec, nil
}

// ── Audit model ───────────────────────────────────────────────────

type auditEventModel struct {
	bun.BaseModel `bun:"table:courier_audit_events"`

	ID         string         `bun:"id,pk"`
	Action     string         `bun:"action,notnull"`
	Resource   string         `bun:"resource,notnull"`
	Category   string         `bun:"category"`
	ActorID    string         `bun:"actor_id"`
	ResourceID string         `bun:"resource_id"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	Outcome    string         `bun:"outcome,notnull"`
	Severity   string         `bun:"severity,notnull"`
	Reason     string         `bun:"reason"`
	CreatedAt  time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

func toAuditEventModel(evt *audit.Event) *auditEventModel {
	return &auditEventModel{
		ID:         evt.ID.String(),
		Action:     evt.Action,
		Resource:   evt.Resource,
		Category:   evt.Category,
		ActorID:    evt.ActorID,
		ResourceID: evt.ResourceID,
		Metadata:   evt.Metadata,
		Outcome:    evt.Outcome,
		Severity:   evt.Severity,
		Reason:     evt.Reason,
		CreatedAt:  evt.CreatedAt,
		UpdatedAt:  evt.UpdatedAt,
	}
}
