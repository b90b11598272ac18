package render_test

import (
	"context"
	"strings"
	"testing"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/render"
	"github.com/squidi0n/fluxao-sub000/subscriber"
	"github.com/squidi0n/fluxao-sub000/token"
)

const baseURL = "https://news.example.com"

type consentList []*subscriber.ConsentRecord

func (c consentList) AppendConsent(context.Context, *subscriber.ConsentRecord) error { return nil }

func (c consentList) ListConsents(context.Context, id.SubscriberID) ([]*subscriber.ConsentRecord, error) {
	return c, nil
}

func trackingConsent(given bool) consentList {
	return consentList{{
		Entity: courier.NewEntity(),
		ID:     id.NewConsentID(),
		Type:   subscriber.ConsentTracking,
		Given:  given,
	}}
}

func testSubscriber() *subscriber.Subscriber {
	return &subscriber.Subscriber{
		Entity: courier.NewEntity(),
		ID:     id.NewSubscriberID(),
		Email:  "a@example.com",
		Status: subscriber.StatusVerified,
	}
}

func TestRender_SubstitutesPlaceholders(t *testing.T) {
	t.Parallel()
	svc := token.New("secret", baseURL)
	r := render.New(svc)
	sub := testSubscriber()
	campaignID := id.NewIssueID()

	html := `<p>Hi</p><a href="{{UNSUBSCRIBE_URL}}">bye</a><img src="{{TRACKING_PIXEL_URL}}">`
	out, err := r.Render(context.Background(), html, campaignID, sub)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(out, "{{") {
		t.Errorf("placeholders left in output: %q", out)
	}
	if !strings.Contains(out, svc.UnsubscribeURL(sub.ID, sub.Email)) {
		t.Error("unsubscribe URL missing from output")
	}
	if !strings.Contains(out, svc.PixelURL(campaignID, sub.ID)) {
		t.Error("pixel URL missing from output")
	}
}

func TestRender_RewritesLinksWithConsent(t *testing.T) {
	t.Parallel()
	svc := token.New("secret", baseURL)
	r := render.New(svc, render.WithConsentStore(trackingConsent(true)))
	sub := testSubscriber()
	campaignID := id.NewIssueID()

	html := `<a href="https://example.org/post">read</a>`
	out, err := r.Render(context.Background(), html, campaignID, sub)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := svc.ClickURL(campaignID, sub.ID, "https://example.org/post")
	if !strings.Contains(out, want) {
		t.Errorf("output = %q, want click URL %q", out, want)
	}
	if strings.Contains(out, `href="https://example.org/post"`) {
		t.Error("original link left unrewritten")
	}
}

func TestRender_SkipsExemptLinks(t *testing.T) {
	t.Parallel()
	svc := token.New("secret", baseURL)
	r := render.New(svc, render.WithConsentStore(trackingConsent(true)))
	sub := testSubscriber()

	html := `<a href="` + baseURL + `/article">internal</a>` +
		`<a href="https://other.example.org/unsubscribe">unsub</a>` +
		`<a href="https://other.example.org/preferences?x=1">prefs</a>`
	out, err := r.Render(context.Background(), html, id.NewIssueID(), sub)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out != html {
		t.Errorf("exempt links were rewritten:\n got %q\nwant %q", out, html)
	}
}

func TestRender_NoRewriteWithoutConsent(t *testing.T) {
	t.Parallel()
	svc := token.New("secret", baseURL)

	html := `<a href="https://example.org/post">read</a>`
	sub := testSubscriber()

	for name, r := range map[string]*render.Renderer{
		"no consent store":   render.New(svc),
		"tracking declined":  render.New(svc, render.WithConsentStore(trackingConsent(false))),
		"no consent records": render.New(svc, render.WithConsentStore(consentList{})),
	} {
		out, err := r.Render(context.Background(), html, id.NewIssueID(), sub)
		if err != nil {
			t.Fatalf("%s: Render: %v", name, err)
		}
		if out != html {
			t.Errorf("%s: links rewritten without consent: %q", name, out)
		}
	}
}

func TestRender_SubscriberFlagFallback(t *testing.T) {
	t.Parallel()
	svc := token.New("secret", baseURL)
	r := render.New(svc, render.WithConsentStore(consentList{}))
	sub := testSubscriber()
	sub.AllowTracking = true

	html := `<a href="https://example.org/post">read</a>`
	out, err := r.Render(context.Background(), html, id.NewIssueID(), sub)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out == html {
		t.Error("AllowTracking flag did not enable rewriting")
	}
}
