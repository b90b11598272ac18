package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/subscriber"
)

// Result is the outcome of a token-guarded flow. Message is safe to
// show to the subscriber.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConsentInput carries the evidence recorded alongside a consent
// change. IPAddress is hashed before persisting; the raw address never
// reaches a store.
type ConsentInput struct {
	Given     bool
	Method    string
	IPAddress string
	UserAgent string
}

// ─────────────────────────────────────────────────────────────────────
// Unsubscribe
// ─────────────────────────────────────────────────────────────────────

// HandleUnsubscribe verifies the token and, on success, marks the
// subscriber unsubscribed, appends a MARKETING consent withdrawal, and
// logs an UNSUBSCRIBE interaction. Verification failures are reported
// in the Result, not as errors; the error return is for store
// failures only.
func (s *Service) HandleUnsubscribe(ctx context.Context, email, token, reason string) (Result, error) {
	if s.subs == nil {
		return Result{}, courier.ErrNoStore
	}

	sub, err := s.subs.GetSubscriberByEmail(ctx, email)
	if errors.Is(err, courier.ErrSubscriberNotFound) {
		return Result{Message: "Subscriber not found"}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("lookup subscriber: %w", err)
	}

	if !s.VerifyUnsubscribe(sub.ID, email, token) {
		s.logger.Warn("unsubscribe token rejected", slog.String("subscriber_id", sub.ID.String()))
		return Result{Message: "Invalid unsubscribe token"}, nil
	}

	if err := s.subs.UnsubscribeSubscriber(ctx, sub.ID, subscriber.UnsubscribeUpdate{Reason: reason}); err != nil {
		return Result{}, fmt.Errorf("unsubscribe %s: %w", sub.ID, err)
	}

	s.LogConsent(ctx, sub.ID, subscriber.ConsentMarketing, ConsentInput{
		Given:  false,
		Method: "unsubscribe_link",
	})
	s.logInteraction(ctx, &subscriber.InteractionRecord{
		Entity:       courier.NewEntity(),
		ID:           id.NewInteractionID(),
		SubscriberID: sub.ID,
		Type:         subscriber.InteractionUnsubscribe,
		Metadata: map[string]any{
			"reason": reason,
			"method": "unsubscribe_link",
		},
		Timestamp: time.Now(),
	})

	s.logger.Info("subscriber unsubscribed",
		slog.String("subscriber_id", sub.ID.String()),
		slog.String("reason", reason))
	return Result{Success: true, Message: "Successfully unsubscribed"}, nil
}

// ─────────────────────────────────────────────────────────────────────
// Right to erasure
// ─────────────────────────────────────────────────────────────────────

// DeleteSubscriberData verifies the token and erases the subscriber
// together with every consent and interaction record in one
// all-or-nothing operation.
func (s *Service) DeleteSubscriberData(ctx context.Context, email, token string) (Result, error) {
	if s.subs == nil {
		return Result{}, courier.ErrNoStore
	}

	sub, err := s.subs.GetSubscriberByEmail(ctx, email)
	if errors.Is(err, courier.ErrSubscriberNotFound) {
		return Result{Message: "Subscriber not found"}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("lookup subscriber: %w", err)
	}

	if !s.VerifyUnsubscribe(sub.ID, email, token) {
		s.logger.Warn("deletion token rejected", slog.String("subscriber_id", sub.ID.String()))
		return Result{Message: "Invalid deletion token"}, nil
	}

	if err := s.subs.EraseSubscriber(ctx, sub.ID); err != nil {
		return Result{}, fmt.Errorf("erase %s: %w", sub.ID, err)
	}

	s.logger.Info("subscriber data erased", slog.String("subscriber_id", sub.ID.String()))
	return Result{Success: true, Message: "All data successfully deleted"}, nil
}

// ─────────────────────────────────────────────────────────────────────
// Engagement tracking
// ─────────────────────────────────────────────────────────────────────

// HandleOpen verifies an open-tracking token and logs an OPEN
// interaction. A token minted for a different campaign or subscriber
// is rejected with courier.ErrInvalidToken and nothing is logged.
func (s *Service) HandleOpen(ctx context.Context, campaignID id.IssueID, subID id.SubscriberID, token string) error {
	if !s.VerifyOpen(campaignID, subID, token) {
		s.logger.Warn("open tracking token rejected",
			slog.String("campaign_id", campaignID.String()),
			slog.String("subscriber_id", subID.String()))
		return courier.ErrInvalidToken
	}
	s.logInteraction(ctx, &subscriber.InteractionRecord{
		Entity:       courier.NewEntity(),
		ID:           id.NewInteractionID(),
		SubscriberID: subID,
		CampaignID:   campaignID,
		Type:         subscriber.InteractionOpen,
		Timestamp:    time.Now(),
	})
	return nil
}

// HandleClick verifies a click-tracking token and logs a CLICK
// interaction. On success it returns the destination URL to redirect
// to. The token binds the destination at generation time, so a
// tampered URL fails verification with courier.ErrInvalidToken.
func (s *Service) HandleClick(ctx context.Context, campaignID id.IssueID, subID id.SubscriberID, dest, token string) (string, error) {
	if !s.VerifyClick(campaignID, subID, dest, token) {
		s.logger.Warn("click tracking token rejected",
			slog.String("campaign_id", campaignID.String()),
			slog.String("subscriber_id", subID.String()))
		return "", courier.ErrInvalidToken
	}
	s.logInteraction(ctx, &subscriber.InteractionRecord{
		Entity:       courier.NewEntity(),
		ID:           id.NewInteractionID(),
		SubscriberID: subID,
		CampaignID:   campaignID,
		Type:         subscriber.InteractionClick,
		Value:        dest,
		Metadata: map[string]any{
			"url": dest,
		},
		Timestamp: time.Now(),
	})
	return dest, nil
}

// ─────────────────────────────────────────────────────────────────────
// Audit trail writes
// ─────────────────────────────────────────────────────────────────────

// LogConsent appends one consent record. The IP address is reduced to
// the first 16 hex characters of its SHA-256 digest and the user agent
// is capped at 500 bytes. Failures are logged, never propagated: a
// missing audit entry must not fail the surrounding flow.
func (s *Service) LogConsent(ctx context.Context, subID id.SubscriberID, typ subscriber.ConsentType, in ConsentInput) {
	if s.consents == nil {
		return
	}

	ua := in.UserAgent
	if len(ua) > 500 {
		ua = ua[:500]
	}
	rec := &subscriber.ConsentRecord{
		Entity:       courier.NewEntity(),
		ID:           id.NewConsentID(),
		SubscriberID: subID,
		Type:         typ,
		Given:        in.Given,
		Method:       in.Method,
		HashedIP:     hashIP(in.IPAddress),
		UserAgent:    ua,
		Version:      consentVersion,
	}
	if err := s.consents.AppendConsent(ctx, rec); err != nil {
		s.logger.Warn("failed to log consent",
			slog.String("subscriber_id", subID.String()),
			slog.String("type", string(typ)),
			slog.Any("error", err))
	}
}

// LogDelivery appends a DELIVERY interaction recording the outcome of
// one send. Failures are logged, never propagated.
func (s *Service) LogDelivery(ctx context.Context, campaignID id.IssueID, subID id.SubscriberID, status string) {
	s.logInteraction(ctx, &subscriber.InteractionRecord{
		Entity:       courier.NewEntity(),
		ID:           id.NewInteractionID(),
		SubscriberID: subID,
		CampaignID:   campaignID,
		Type:         subscriber.InteractionDelivery,
		Value:        status,
		Metadata: map[string]any{
			"delivery_status": status,
		},
		Timestamp: time.Now(),
	})
}

func (s *Service) logInteraction(ctx context.Context, rec *subscriber.InteractionRecord) {
	if s.interactions == nil {
		return
	}
	if err := s.interactions.AppendInteraction(ctx, rec); err != nil {
		s.logger.Warn("failed to log interaction",
			slog.String("subscriber_id", rec.SubscriberID.String()),
			slog.String("type", string(rec.Type)),
			slog.Any("error", err))
	}
}

// hashIP reduces an IP address to the first 16 hex characters of its
// SHA-256 digest. Empty input stays empty.
func hashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:16]
}

// ─────────────────────────────────────────────────────────────────────
// Email headers
// ─────────────────────────────────────────────────────────────────────

// EmailHeaders returns the compliance headers attached to every
// outgoing newsletter email, including the one-click List-Unsubscribe
// pair.
func (s *Service) EmailHeaders(campaignID id.IssueID, subID id.SubscriberID, email string) map[string]string {
	host := s.baseURL
	if u, err := url.Parse(s.baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return map[string]string{
		"List-Unsubscribe":         "<" + s.UnsubscribeURL(subID, email) + ">",
		"List-Unsubscribe-Post":    "List-Unsubscribe=One-Click",
		"List-ID":                  fmt.Sprintf("Newsletter <newsletter.%s>", host),
		"Precedence":               "bulk",
		"X-Auto-Response-Suppress": "All",
		"X-Campaign-ID":            campaignID.String(),
	}
}
