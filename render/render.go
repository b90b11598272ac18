// Package render prepares newsletter HTML for one recipient.
//
// It substitutes the compliance placeholders with signed per-subscriber
// URLs and, when the subscriber consented to tracking, rewrites
// external links through the click-tracking redirect. Body generation
// itself happens upstream; this package only decorates opaque HTML.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/subscriber"
	"github.com/squidi0n/fluxao-sub000/token"
)

// Placeholders substituted in newsletter bodies.
const (
	PlaceholderUnsubscribeURL   = "{{UNSUBSCRIBE_URL}}"
	PlaceholderPreferencesURL   = "{{PREFERENCES_URL}}"
	PlaceholderTrackingPixelURL = "{{TRACKING_PIXEL_URL}}"
	PlaceholderListUnsubHeader  = "{{LIST_UNSUBSCRIBE_HEADER}}"
)

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// Renderer decorates newsletter HTML with per-subscriber URLs.
type Renderer struct {
	tokens   *token.Service
	consents subscriber.ConsentStore
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// WithConsentStore wires the consent trail consulted before click
// rewriting. Without it no links are rewritten.
func WithConsentStore(st subscriber.ConsentStore) Option {
	return func(r *Renderer) { r.consents = st }
}

// New creates a Renderer minting URLs through tokens.
func New(tokens *token.Service, opts ...Option) *Renderer {
	r := &Renderer{tokens: tokens}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Render returns html with placeholders substituted for sub and, when
// the subscriber's newest TRACKING consent record grants it, external
// links rewritten through the click redirect. Links pointing at the
// service itself and unsubscribe/preference links are never rewritten.
func (r *Renderer) Render(ctx context.Context, html string, campaignID id.IssueID, sub *subscriber.Subscriber) (string, error) {
	unsubURL := r.tokens.UnsubscribeURL(sub.ID, sub.Email)

	out := strings.NewReplacer(
		PlaceholderUnsubscribeURL, unsubURL,
		PlaceholderPreferencesURL, r.tokens.PreferencesURL(sub.ID, sub.Email),
		PlaceholderTrackingPixelURL, r.tokens.PixelURL(campaignID, sub.ID),
		PlaceholderListUnsubHeader, unsubURL,
	).Replace(html)

	tracked, err := r.hasTrackingConsent(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("check tracking consent: %w", err)
	}
	if !tracked {
		return out, nil
	}

	base := r.tokens.BaseURL()
	out = hrefPattern.ReplaceAllStringFunc(out, func(match string) string {
		dest := hrefPattern.FindStringSubmatch(match)[1]
		if strings.Contains(dest, base) ||
			strings.Contains(dest, "unsubscribe") ||
			strings.Contains(dest, "preferences") {
			return match
		}
		return `href="` + r.tokens.ClickURL(campaignID, sub.ID, dest) + `"`
	})
	return out, nil
}

// hasTrackingConsent reports whether the newest TRACKING consent record
// grants tracking. The subscriber flag is the fallback when no record
// exists.
func (r *Renderer) hasTrackingConsent(ctx context.Context, sub *subscriber.Subscriber) (bool, error) {
	if r.consents == nil {
		return false, nil
	}
	recs, err := r.consents.ListConsents(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	for _, rec := range recs { // newest first
		if rec.Type == subscriber.ConsentTracking {
			return rec.Given, nil
		}
	}
	return sub.AllowTracking, nil
}
