package token_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/subscriber"
	"github.com/squidi0n/fluxao-sub000/token"
)

const (
	testSecret  = "test-secret"
	testBaseURL = "https://news.example.com"
)

func TestUnsubscribeToken_Deterministic(t *testing.T) {
	t.Parallel()
	svc := token.New(testSecret, testBaseURL)
	subID := id.NewSubscriberID()

	a := svc.UnsubscribeToken(subID, "a@example.com")
	b := svc.UnsubscribeToken(subID, "a@example.com")
	if a != b {
		t.Errorf("same inputs produced different tokens: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("token length = %d, want 32", len(a))
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	t.Parallel()
	svc := token.New(testSecret, testBaseURL)
	subID := id.NewSubscriberID()
	campaignID := id.NewIssueID()

	tok := svc.UnsubscribeToken(subID, "a@example.com")
	if !svc.VerifyUnsubscribe(subID, "a@example.com", tok) {
		t.Fatal("valid token rejected")
	}

	// Flip one character.
	flipped := []byte(tok)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	if svc.VerifyUnsubscribe(subID, "a@example.com", string(flipped)) {
		t.Error("tampered token accepted")
	}

	// Different email.
	if svc.VerifyUnsubscribe(subID, "b@example.com", tok) {
		t.Error("token accepted for different email")
	}

	// Different secret.
	other := token.New("other-secret", testBaseURL)
	if other.VerifyUnsubscribe(subID, "a@example.com", tok) {
		t.Error("token accepted under different secret")
	}

	// Purpose binding: an open token must not verify as a click token.
	open := svc.OpenToken(campaignID, subID)
	if svc.VerifyClick(campaignID, subID, "https://example.org", open) {
		t.Error("open token accepted for click purpose")
	}
}

func TestClickToken_BindsDestination(t *testing.T) {
	t.Parallel()
	svc := token.New(testSecret, testBaseURL)
	subID := id.NewSubscriberID()
	campaignID := id.NewIssueID()

	tok := svc.ClickToken(campaignID, subID, "https://example.org/a")
	if !svc.VerifyClick(campaignID, subID, "https://example.org/a", tok) {
		t.Fatal("valid click token rejected")
	}
	if svc.VerifyClick(campaignID, subID, "https://evil.example.org", tok) {
		t.Error("click token accepted for different destination")
	}
	if len(tok) != 16 {
		t.Errorf("click token length = %d, want 16", len(tok))
	}
}

func TestURLs_CarryVerifiableTokens(t *testing.T) {
	t.Parallel()
	svc := token.New(testSecret, testBaseURL)
	subID := id.NewSubscriberID()
	campaignID := id.NewIssueID()

	pixel, err := url.Parse(svc.PixelURL(campaignID, subID))
	if err != nil {
		t.Fatalf("parse pixel URL: %v", err)
	}
	q := pixel.Query()
	if q.Get("c") != campaignID.String() || q.Get("s") != subID.String() {
		t.Errorf("pixel URL params = %v", q)
	}
	if !svc.VerifyOpen(campaignID, subID, q.Get("t")) {
		t.Error("pixel URL token does not verify")
	}

	click, err := url.Parse(svc.ClickURL(campaignID, subID, "https://example.org/post?x=1"))
	if err != nil {
		t.Fatalf("parse click URL: %v", err)
	}
	q = click.Query()
	if got := q.Get("u"); got != "https://example.org/post?x=1" {
		t.Errorf("u param = %q", got)
	}
	if !svc.VerifyClick(campaignID, subID, q.Get("u"), q.Get("t")) {
		t.Error("click URL token does not verify")
	}

	unsub := svc.UnsubscribeURL(subID, "a@example.com")
	if !strings.HasPrefix(unsub, testBaseURL+"/newsletter/unsubscribe?") {
		t.Errorf("unsubscribe URL = %q", unsub)
	}
}

// ─────────────────────────────────────────────────────────────────────
// Flow tests
// ─────────────────────────────────────────────────────────────────────

// fakeStore is a minimal in-memory subscriber store for flow tests.
type fakeStore struct {
	subs         map[string]*subscriber.Subscriber // by email
	consents     []*subscriber.ConsentRecord
	interactions []*subscriber.InteractionRecord
	erased       []id.SubscriberID
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[string]*subscriber.Subscriber)}
}

func (f *fakeStore) add(email string) *subscriber.Subscriber {
	s := &subscriber.Subscriber{
		Entity: courier.NewEntity(),
		ID:     id.NewSubscriberID(),
		Email:  email,
		Status: subscriber.StatusVerified,
	}
	f.subs[email] = s
	return s
}

func (f *fakeStore) CreateSubscriber(_ context.Context, s *subscriber.Subscriber) error {
	f.subs[s.Email] = s
	return nil
}

func (f *fakeStore) GetSubscriber(_ context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	for _, s := range f.subs {
		if s.ID == subID {
			return s, nil
		}
	}
	return nil, courier.ErrSubscriberNotFound
}

func (f *fakeStore) GetSubscriberByEmail(_ context.Context, email string) (*subscriber.Subscriber, error) {
	s, ok := f.subs[email]
	if !ok {
		return nil, courier.ErrSubscriberNotFound
	}
	return s, nil
}

func (f *fakeStore) ListSubscribers(_ context.Context, _ subscriber.ListOpts) ([]*subscriber.Subscriber, error) {
	return nil, nil
}

func (f *fakeStore) UnsubscribeSubscriber(_ context.Context, subID id.SubscriberID, upd subscriber.UnsubscribeUpdate) error {
	for _, s := range f.subs {
		if s.ID == subID {
			s.Status = subscriber.StatusUnsubscribed
			s.UnsubscribeReason = upd.Reason
			return nil
		}
	}
	return courier.ErrSubscriberNotFound
}

func (f *fakeStore) EraseSubscriber(_ context.Context, subID id.SubscriberID) error {
	for email, s := range f.subs {
		if s.ID == subID {
			delete(f.subs, email)
			f.erased = append(f.erased, subID)
			return nil
		}
	}
	return courier.ErrSubscriberNotFound
}

func (f *fakeStore) AppendConsent(_ context.Context, rec *subscriber.ConsentRecord) error {
	f.consents = append(f.consents, rec)
	return nil
}

func (f *fakeStore) ListConsents(_ context.Context, _ id.SubscriberID) ([]*subscriber.ConsentRecord, error) {
	return f.consents, nil
}

func (f *fakeStore) AppendInteraction(_ context.Context, rec *subscriber.InteractionRecord) error {
	f.interactions = append(f.interactions, rec)
	return nil
}

func (f *fakeStore) ListInteractions(_ context.Context, _ id.SubscriberID) ([]*subscriber.InteractionRecord, error) {
	return f.interactions, nil
}

func newFlowService(st *fakeStore) *token.Service {
	return token.New(testSecret, testBaseURL,
		token.WithSubscriberStore(st),
		token.WithConsentStore(st),
		token.WithInteractionStore(st),
	)
}

func TestHandleUnsubscribe(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	sub := st.add("a@example.com")
	svc := newFlowService(st)
	ctx := context.Background()

	tok := svc.UnsubscribeToken(sub.ID, sub.Email)
	res, err := svc.HandleUnsubscribe(ctx, sub.Email, tok, "too many emails")
	if err != nil {
		t.Fatalf("HandleUnsubscribe: %v", err)
	}
	if !res.Success || res.Message != "Successfully unsubscribed" {
		t.Errorf("result = %+v", res)
	}
	if sub.Status != subscriber.StatusUnsubscribed {
		t.Errorf("status = %v, want unsubscribed", sub.Status)
	}
	if sub.UnsubscribeReason != "too many emails" {
		t.Errorf("reason = %q", sub.UnsubscribeReason)
	}

	// Consent withdrawal appended.
	if len(st.consents) != 1 {
		t.Fatalf("consent records = %d, want 1", len(st.consents))
	}
	c := st.consents[0]
	if c.Type != subscriber.ConsentMarketing || c.Given || c.Method != "unsubscribe_link" {
		t.Errorf("consent record = %+v", c)
	}

	// Unsubscribe interaction appended.
	if len(st.interactions) != 1 {
		t.Fatalf("interaction records = %d, want 1", len(st.interactions))
	}
	if st.interactions[0].Type != subscriber.InteractionUnsubscribe {
		t.Errorf("interaction type = %v", st.interactions[0].Type)
	}
}

func TestHandleUnsubscribe_Rejections(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	sub := st.add("a@example.com")
	svc := newFlowService(st)
	ctx := context.Background()

	res, err := svc.HandleUnsubscribe(ctx, "missing@example.com", "whatever", "")
	if err != nil {
		t.Fatalf("HandleUnsubscribe: %v", err)
	}
	if res.Success || res.Message != "Subscriber not found" {
		t.Errorf("result = %+v", res)
	}

	res, err = svc.HandleUnsubscribe(ctx, sub.Email, "bogus-token", "")
	if err != nil {
		t.Fatalf("HandleUnsubscribe: %v", err)
	}
	if res.Success || res.Message != "Invalid unsubscribe token" {
		t.Errorf("result = %+v", res)
	}
	if sub.Status != subscriber.StatusVerified {
		t.Errorf("rejected unsubscribe mutated status to %v", sub.Status)
	}
	if len(st.consents) != 0 || len(st.interactions) != 0 {
		t.Error("rejected unsubscribe wrote audit records")
	}
}

func TestDeleteSubscriberData(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	sub := st.add("a@example.com")
	svc := newFlowService(st)
	ctx := context.Background()

	res, err := svc.DeleteSubscriberData(ctx, sub.Email, "bogus")
	if err != nil {
		t.Fatalf("DeleteSubscriberData: %v", err)
	}
	if res.Success || res.Message != "Invalid deletion token" {
		t.Errorf("result = %+v", res)
	}
	if len(st.erased) != 0 {
		t.Fatal("invalid token triggered erasure")
	}

	tok := svc.UnsubscribeToken(sub.ID, sub.Email)
	res, err = svc.DeleteSubscriberData(ctx, sub.Email, tok)
	if err != nil {
		t.Fatalf("DeleteSubscriberData: %v", err)
	}
	if !res.Success || res.Message != "All data successfully deleted" {
		t.Errorf("result = %+v", res)
	}
	if len(st.erased) != 1 || st.erased[0] != sub.ID {
		t.Errorf("erased = %v", st.erased)
	}
}

func TestLogConsent_HashesIP(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newFlowService(st)
	subID := id.NewSubscriberID()

	svc.LogConsent(context.Background(), subID, subscriber.ConsentTracking, token.ConsentInput{
		Given:     true,
		Method:    "web_form",
		IPAddress: "203.0.113.7",
		UserAgent: strings.Repeat("x", 600),
	})

	if len(st.consents) != 1 {
		t.Fatalf("consent records = %d, want 1", len(st.consents))
	}
	rec := st.consents[0]
	if rec.HashedIP == "" || strings.Contains(rec.HashedIP, "203.0.113.7") {
		t.Errorf("hashed IP = %q, want 16-hex digest", rec.HashedIP)
	}
	if len(rec.HashedIP) != 16 {
		t.Errorf("hashed IP length = %d, want 16", len(rec.HashedIP))
	}
	if len(rec.UserAgent) != 500 {
		t.Errorf("user agent length = %d, want capped at 500", len(rec.UserAgent))
	}
}

func TestEmailHeaders(t *testing.T) {
	t.Parallel()
	svc := token.New(testSecret, testBaseURL)
	subID := id.NewSubscriberID()
	campaignID := id.NewIssueID()

	h := svc.EmailHeaders(campaignID, subID, "a@example.com")
	if got := h["List-Unsubscribe-Post"]; got != "List-Unsubscribe=One-Click" {
		t.Errorf("List-Unsubscribe-Post = %q", got)
	}
	if got := h["List-Unsubscribe"]; !strings.HasPrefix(got, "<"+testBaseURL+"/newsletter/unsubscribe?") {
		t.Errorf("List-Unsubscribe = %q", got)
	}
	if got := h["List-ID"]; !strings.Contains(got, "news.example.com") {
		t.Errorf("List-ID = %q", got)
	}
	if got := h["X-Campaign-ID"]; got != campaignID.String() {
		t.Errorf("X-Campaign-ID = %q", got)
	}
}

func TestHandleOpen(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newFlowService(st)
	ctx := context.Background()
	campaignID := id.NewIssueID()
	subID := id.NewSubscriberID()

	tok := svc.OpenToken(campaignID, subID)
	if err := svc.HandleOpen(ctx, campaignID, subID, tok); err != nil {
		t.Fatalf("HandleOpen: %v", err)
	}
	if len(st.interactions) != 1 || st.interactions[0].Type != subscriber.InteractionOpen {
		t.Errorf("interactions = %+v", st.interactions)
	}
	if st.interactions[0].CampaignID != campaignID {
		t.Errorf("campaign = %v", st.interactions[0].CampaignID)
	}
}

func TestHandleOpen_RejectsInvalidToken(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newFlowService(st)
	ctx := context.Background()
	campaignID := id.NewIssueID()
	subID := id.NewSubscriberID()

	// Token minted for another subscriber.
	tok := svc.OpenToken(campaignID, id.NewSubscriberID())
	if err := svc.HandleOpen(ctx, campaignID, subID, tok); !errors.Is(err, courier.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if len(st.interactions) != 0 {
		t.Error("rejected open must not be logged")
	}
}

func TestHandleClick(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newFlowService(st)
	ctx := context.Background()
	campaignID := id.NewIssueID()
	subID := id.NewSubscriberID()
	dest := "https://example.com/article"

	tok := svc.ClickToken(campaignID, subID, dest)
	got, err := svc.HandleClick(ctx, campaignID, subID, dest, tok)
	if err != nil {
		t.Fatalf("HandleClick: %v", err)
	}
	if got != dest {
		t.Errorf("redirect = %q, want %q", got, dest)
	}
	if len(st.interactions) != 1 || st.interactions[0].Type != subscriber.InteractionClick {
		t.Errorf("interactions = %+v", st.interactions)
	}
	if st.interactions[0].Value != dest {
		t.Errorf("value = %q", st.interactions[0].Value)
	}
}

func TestHandleClick_RejectsTamperedDestination(t *testing.T) {
	t.Parallel()
	st := newFakeStore()
	svc := newFlowService(st)
	ctx := context.Background()
	campaignID := id.NewIssueID()
	subID := id.NewSubscriberID()

	tok := svc.ClickToken(campaignID, subID, "https://example.com/article")
	if _, err := svc.HandleClick(ctx, campaignID, subID, "https://evil.example.com", tok); !errors.Is(err, courier.ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if len(st.interactions) != 0 {
		t.Error("rejected click must not be logged")
	}
}
