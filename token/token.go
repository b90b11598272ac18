// Package token mints and verifies the HMAC tokens that guard every
// subscriber-facing endpoint: unsubscribe, open tracking, and click
// tracking.
//
// Tokens are stateless truncated HMAC-SHA256 digests keyed on a shared
// secret. Each purpose signs a distinct message, so a token issued for
// one purpose never verifies for another, and click tokens bind the
// destination URL into the hash to block open redirects. Verification
// is constant-time.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"

	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/subscriber"
)

const (
	// unsubscribeTokenLen is the hex length of unsubscribe tokens.
	unsubscribeTokenLen = 32
	// trackTokenLen is the hex length of open and click tracking tokens.
	trackTokenLen = 16

	consentVersion = "v2.0-2024"
)

// Service mints and verifies subscriber tokens and runs the
// token-guarded flows. One instance per secret.
type Service struct {
	secret  []byte
	baseURL string
	logger  *slog.Logger

	subs         subscriber.Store
	consents     subscriber.ConsentStore
	interactions subscriber.InteractionStore
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithSubscriberStore wires the subscriber store required by the
// unsubscribe and erasure flows.
func WithSubscriberStore(st subscriber.Store) Option {
	return func(s *Service) { s.subs = st }
}

// WithConsentStore wires the consent audit trail.
func WithConsentStore(st subscriber.ConsentStore) Option {
	return func(s *Service) { s.consents = st }
}

// WithInteractionStore wires the interaction log.
func WithInteractionStore(st subscriber.InteractionStore) Option {
	return func(s *Service) { s.interactions = st }
}

// New creates a Service signing with secret and minting URLs under
// baseURL (no trailing slash).
func New(secret, baseURL string, opts ...Option) *Service {
	s := &Service{
		secret:  []byte(secret),
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// BaseURL returns the public base URL tokens link back to.
func (s *Service) BaseURL() string { return s.baseURL }

// ─────────────────────────────────────────────────────────────────────
// Minting
// ─────────────────────────────────────────────────────────────────────

// sign returns the first n hex characters of HMAC-SHA256(secret, msg).
func (s *Service) sign(msg string, n int) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))[:n]
}

// UnsubscribeToken mints the token embedded in unsubscribe and
// erasure links for one subscriber.
func (s *Service) UnsubscribeToken(subID id.SubscriberID, email string) string {
	return s.sign(subID.String()+":"+email+":unsubscribe", unsubscribeTokenLen)
}

// OpenToken mints the token carried by the tracking pixel for one
// campaign and subscriber.
func (s *Service) OpenToken(campaignID id.IssueID, subID id.SubscriberID) string {
	return s.sign(campaignID.String()+":"+subID.String()+":track", trackTokenLen)
}

// ClickToken mints the token for one rewritten link. The destination
// URL is part of the signed message, so swapping the destination
// invalidates the token.
func (s *Service) ClickToken(campaignID id.IssueID, subID id.SubscriberID, dest string) string {
	return s.sign(campaignID.String()+":"+subID.String()+":click:"+dest, trackTokenLen)
}

// ─────────────────────────────────────────────────────────────────────
// Verification
// ─────────────────────────────────────────────────────────────────────

// verify compares a presented token against the expected one in
// constant time.
func verify(presented, expected string) bool {
	return hmac.Equal([]byte(presented), []byte(expected))
}

// VerifyUnsubscribe reports whether token is valid for the given
// subscriber and email.
func (s *Service) VerifyUnsubscribe(subID id.SubscriberID, email, token string) bool {
	return verify(token, s.UnsubscribeToken(subID, email))
}

// VerifyOpen reports whether token is valid for the tracking pixel of
// the given campaign and subscriber.
func (s *Service) VerifyOpen(campaignID id.IssueID, subID id.SubscriberID, token string) bool {
	return verify(token, s.OpenToken(campaignID, subID))
}

// VerifyClick reports whether token is valid for the given campaign,
// subscriber, and destination URL.
func (s *Service) VerifyClick(campaignID id.IssueID, subID id.SubscriberID, dest, token string) bool {
	return verify(token, s.ClickToken(campaignID, subID, dest))
}

// ─────────────────────────────────────────────────────────────────────
// URL minting
// ─────────────────────────────────────────────────────────────────────

// UnsubscribeURL returns the signed unsubscribe link for a subscriber.
func (s *Service) UnsubscribeURL(subID id.SubscriberID, email string) string {
	q := url.Values{}
	q.Set("token", s.UnsubscribeToken(subID, email))
	q.Set("email", email)
	return s.baseURL + "/newsletter/unsubscribe?" + q.Encode()
}

// PreferencesURL returns the signed preference-center link for a
// subscriber. It reuses the unsubscribe token.
func (s *Service) PreferencesURL(subID id.SubscriberID, email string) string {
	q := url.Values{}
	q.Set("token", s.UnsubscribeToken(subID, email))
	q.Set("email", email)
	return s.baseURL + "/newsletter/preferences?" + q.Encode()
}

// PixelURL returns the open-tracking pixel URL for one campaign and
// subscriber.
func (s *Service) PixelURL(campaignID id.IssueID, subID id.SubscriberID) string {
	q := url.Values{}
	q.Set("c", campaignID.String())
	q.Set("s", subID.String())
	q.Set("t", s.OpenToken(campaignID, subID))
	return s.baseURL + "/api/newsletter/track/open?" + q.Encode()
}

// ClickURL returns the click-tracking redirect URL wrapping dest.
func (s *Service) ClickURL(campaignID id.IssueID, subID id.SubscriberID, dest string) string {
	q := url.Values{}
	q.Set("c", campaignID.String())
	q.Set("s", subID.String())
	q.Set("u", dest)
	q.Set("t", s.ClickToken(campaignID, subID, dest))
	return s.baseURL + "/api/newsletter/track/click?" + q.Encode()
}
