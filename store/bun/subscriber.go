package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/subscriber"
)

// CreateSubscriber persists a new subscriber.
func (s *Store) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	m := toSubscriberModel(sub)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: create subscriber: %w", err)
	}
	return nil
}

// GetSubscriber retrieves a subscriber by ID.
func (s *Store) GetSubscriber(ctx context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	m := new(subscriberModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", subID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("courier/bun: get subscriber: %w", err)
	}
	return fromSubscriberModel(m)
}

// GetSubscriberByEmail retrieves a subscriber by email address,
// case-insensitively.
func (s *Store) GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	m := new(subscriberModel)
	err := s.db.NewSelect().Model(m).
		Where("LOWER(email) = LOWER(?)", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("courier/bun: get subscriber by email: %w", err)
	}
	return fromSubscriberModel(m)
}

// ListSubscribers returns subscribers matching the given options.
func (s *Store) ListSubscribers(ctx context.Context, opts subscriber.ListOpts) ([]*subscriber.Subscriber, error) {
	var models []subscriberModel
	q := s.db.NewSelect().Model(&models).
		Order("created_at ASC")

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/bun: list subscribers: %w", err)
	}

	subs := make([]*subscriber.Subscriber, 0, len(models))
	for i := range models {
		sub, convErr := fromSubscriberModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("courier/bun: list subscribers convert: %w", convErr)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// UnsubscribeSubscriber sets status=unsubscribed with timestamp and
// reason. The status guard in the WHERE clause makes repeated
// unsubscribes no-ops that keep the original timestamp and reason.
func (s *Store) UnsubscribeSubscriber(ctx context.Context, subID id.SubscriberID, upd subscriber.UnsubscribeUpdate) error {
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		TableExpr("courier_subscribers").
		Set("status = ?", string(subscriber.StatusUnsubscribed)).
		Set("unsubscribed_at = ?", now).
		Set("unsubscribe_reason = ?", upd.Reason).
		Set("updated_at = ?", now).
		Where("id = ?", subID.String()).
		Where("status != ?", string(subscriber.StatusUnsubscribed)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: unsubscribe subscriber: %w", err)
	}

	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		// Distinguish "missing" from "already unsubscribed".
		exists, existsErr := s.db.NewSelect().
			TableExpr("courier_subscribers").
			Where("id = ?", subID.String()).
			Exists(ctx)
		if existsErr != nil {
			return fmt.Errorf("courier/bun: unsubscribe subscriber: %w", existsErr)
		}
		if !exists {
			return courier.ErrSubscriberNotFound
		}
	}
	return nil
}

// EraseSubscriber deletes interaction records, consent records, and the
// subscriber row in one transaction (the right-to-erasure flow). Any
// failure rolls the whole delete back.
func (s *Store) EraseSubscriber(ctx context.Context, subID id.SubscriberID) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			TableExpr("courier_interactions").
			Where("subscriber_id = ?", subID.String()).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete interactions: %w", err)
		}
		if _, err := tx.NewDelete().
			TableExpr("courier_consents").
			Where("subscriber_id = ?", subID.String()).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete consents: %w", err)
		}

		res, err := tx.NewDelete().
			TableExpr("courier_subscribers").
			Where("id = ?", subID.String()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete subscriber: %w", err)
		}
		rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
		if rows == 0 {
			return courier.ErrSubscriberNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, courier.ErrSubscriberNotFound) {
			return err
		}
		return fmt.Errorf("courier/bun: erase subscriber: %w: %w", courier.ErrTransactionFailed, err)
	}
	return nil
}

// AppendConsent persists a consent state change.
func (s *Store) AppendConsent(ctx context.Context, rec *subscriber.ConsentRecord) error {
	m := toConsentModel(rec)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: append consent: %w", err)
	}
	return nil
}

// ListConsents returns consent records for a subscriber, newest first.
func (s *Store) ListConsents(ctx context.Context, subID id.SubscriberID) ([]*subscriber.ConsentRecord, error) {
	var models []consentModel
	err := s.db.NewSelect().Model(&models).
		Where("subscriber_id = ?", subID.String()).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: list consents: %w", err)
	}

	recs := make([]*subscriber.ConsentRecord, 0, len(models))
	for i := range models {
		rec, convErr := fromConsentModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("courier/bun: list consents convert: %w", convErr)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// AppendInteraction persists a delivery/engagement event.
func (s *Store) AppendInteraction(ctx context.Context, rec *subscriber.InteractionRecord) error {
	m := toInteractionModel(rec)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/bun: append interaction: %w", err)
	}
	return nil
}

// ListInteractions returns interaction records for a subscriber,
// newest first.
func (s *Store) ListInteractions(ctx context.Context, subID id.SubscriberID) ([]*subscriber.InteractionRecord, error) {
	var models []interactionModel
	err := s.db.NewSelect().Model(&models).
		Where("subscriber_id = ?", subID.String()).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("courier/bun: list interactions: %w", err)
	}

	recs := make([]*subscriber.InteractionRecord, 0, len(models))
	for i := range models {
		rec, convErr := fromInteractionModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("courier/bun: list interactions convert: %w", convErr)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
