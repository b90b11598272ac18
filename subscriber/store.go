package subscriber

import (
	"context"

	"github.com/squidi0n/fluxao-sub000/id"
)

// ListOpts controls filtering for subscriber list queries.
type ListOpts struct {
	// Status filters by subscription state. Empty means all statuses.
	Status Status
	// Limit is the maximum number of subscribers to return. Zero means
	// no limit.
	Limit int
}

// UnsubscribeUpdate carries the mutation applied by the unsubscribe flow.
type UnsubscribeUpdate struct {
	Reason string
}

// Store defines the persistence contract for subscribers.
type Store interface {
	// CreateSubscriber persists a new subscriber.
	CreateSubscriber(ctx context.Context, s *Subscriber) error

	// GetSubscriber retrieves a subscriber by ID.
	GetSubscriber(ctx context.Context, subID id.SubscriberID) (*Subscriber, error)

	// GetSubscriberByEmail retrieves a subscriber by email address.
	GetSubscriberByEmail(ctx context.Context, email string) (*Subscriber, error)

	// ListSubscribers returns subscribers matching the given options.
	ListSubscribers(ctx context.Context, opts ListOpts) ([]*Subscriber, error)

	// UnsubscribeSubscriber sets status=unsubscribed with timestamp and
	// reason. Idempotent: unsubscribing an already-unsubscribed
	// subscriber is a no-op.
	UnsubscribeSubscriber(ctx context.Context, subID id.SubscriberID, upd UnsubscribeUpdate) error

	// EraseSubscriber deletes interaction records, consent records, and
	// the subscriber row in one all-or-nothing transaction (the
	// right-to-erasure flow). A partial delete must roll back and
	// surface courier.ErrTransactionFailed.
	EraseSubscriber(ctx context.Context, subID id.SubscriberID) error
}

// ConsentStore appends to and reads the consent audit trail.
type ConsentStore interface {
	// AppendConsent persists a consent state change.
	AppendConsent(ctx context.Context, rec *ConsentRecord) error

	// ListConsents returns consent records for a subscriber, newest first.
	ListConsents(ctx context.Context, subID id.SubscriberID) ([]*ConsentRecord, error)
}

// InteractionStore appends to and reads the interaction log.
type InteractionStore interface {
	// AppendInteraction persists a delivery/engagement event.
	AppendInteraction(ctx context.Context, rec *InteractionRecord) error

	// ListInteractions returns interaction records for a subscriber,
	// newest first.
	ListInteractions(ctx context.Context, subID id.SubscriberID) ([]*InteractionRecord, error)
}
