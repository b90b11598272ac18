// Package subscriber defines the subscriber identity together with its
// consent and interaction audit trail.
//
// The dispatch path treats subscribers as read-only; the only mutations
// performed by this core are the unsubscribe and right-to-erasure flows,
// both guarded by token verification in the token package.
package subscriber

import (
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
)

// Status represents the subscription state.
type Status string

const (
	// StatusPending means the subscriber has not yet confirmed the
	// double-opt-in verification.
	StatusPending Status = "pending"
	// StatusVerified means the subscriber confirmed the subscription.
	StatusVerified Status = "verified"
	// StatusUnsubscribed means the subscriber withdrew consent.
	StatusUnsubscribed Status = "unsubscribed"
)

// Subscriber is an external identity this core delivers to.
type Subscriber struct {
	courier.Entity

	ID                id.SubscriberID `json:"id"`
	Email             string          `json:"email"`
	Status            Status          `json:"status"`
	AllowTracking     bool            `json:"allow_tracking"`
	UnsubscribedAt    *time.Time      `json:"unsubscribed_at,omitempty"`
	UnsubscribeReason string          `json:"unsubscribe_reason,omitempty"`
}

// ConsentType classifies what a consent record covers.
type ConsentType string

const (
	ConsentMarketing       ConsentType = "MARKETING"
	ConsentTracking        ConsentType = "TRACKING"
	ConsentPersonalization ConsentType = "PERSONALIZATION"
)

// ConsentRecord is one append-only entry in the consent audit trail.
// IP addresses are hashed before they reach this struct; the raw address
// is never persisted.
type ConsentRecord struct {
	courier.Entity

	ID           id.ConsentID    `json:"id"`
	SubscriberID id.SubscriberID `json:"subscriber_id"`
	Type         ConsentType     `json:"type"`
	Given        bool            `json:"given"`
	Method       string          `json:"method"`
	HashedIP     string          `json:"hashed_ip,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Version      string          `json:"version"`
}

// InteractionType classifies delivery and engagement events.
type InteractionType string

const (
	InteractionDelivery    InteractionType = "DELIVERY"
	InteractionOpen        InteractionType = "OPEN"
	InteractionClick       InteractionType = "CLICK"
	InteractionUnsubscribe InteractionType = "UNSUBSCRIBE"
)

// InteractionRecord is one append-only entry in the interaction log.
// Written by token-guarded flows and the delivery path; never read by
// the dispatch path.
type InteractionRecord struct {
	courier.Entity

	ID           id.InteractionID `json:"id"`
	SubscriberID id.SubscriberID  `json:"subscriber_id"`
	CampaignID   id.IssueID       `json:"campaign_id,omitempty"`
	Type         InteractionType  `json:"type"`
	Value        string           `json:"value,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}
