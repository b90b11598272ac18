// Package worker provides the delivery execution engine — an Executor
// that claims a job, renders the issue body for its subscriber, and
// pushes the send through the reliability guards, and a Pool that
// manages polling worker goroutines on top of it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/backpressure"
	"github.com/squidi0n/fluxao-sub000/breaker"
	"github.com/squidi0n/fluxao-sub000/ext"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
	"github.com/squidi0n/fluxao-sub000/middleware"
	"github.com/squidi0n/fluxao-sub000/render"
	"github.com/squidi0n/fluxao-sub000/subscriber"
	"github.com/squidi0n/fluxao-sub000/token"
	"github.com/squidi0n/fluxao-sub000/transport"
)

// Executor runs a single delivery job: claim, render, send through the
// guards, then record the outcome and emit lifecycle events.
type Executor struct {
	jobs       job.Store
	issues     issue.Store
	subs       subscriber.Store
	sender     transport.Sender
	renderer   *render.Renderer
	tokens     *token.Service
	guard      *breaker.Breaker
	gate       *backpressure.Manager
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRenderer sets the body renderer. Without one, issue bodies are
// sent as-is.
func WithRenderer(r *render.Renderer) ExecutorOption {
	return func(e *Executor) { e.renderer = r }
}

// WithTokens sets the token service used to log delivery interactions.
func WithTokens(t *token.Service) ExecutorOption {
	return func(e *Executor) { e.tokens = t }
}

// WithBreaker sets the circuit breaker guarding the transport.
func WithBreaker(b *breaker.Breaker) ExecutorOption {
	return func(e *Executor) { e.guard = b }
}

// WithBackpressure sets the concurrency gate for sends.
func WithBackpressure(m *backpressure.Manager) ExecutorOption {
	return func(e *Executor) { e.gate = m }
}

// WithExtensions sets the lifecycle event registry.
func WithExtensions(r *ext.Registry) ExecutorOption {
	return func(e *Executor) { e.extensions = r }
}

// WithMiddleware sets the middleware applied around each send.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithExecutorLogger sets the structured logger.
func WithExecutorLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	jobs job.Store,
	issues issue.Store,
	subs subscriber.Store,
	sender transport.Sender,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		jobs:       jobs,
		issues:     issues,
		subs:       subs,
		sender:     sender,
		extensions: ext.NewRegistry(slog.Default()),
		mw:         middleware.Chain(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute claims the job for workerID and performs the send.
//
// The claim is a conditional update: only a pending job can be claimed,
// and losing the claim surfaces courier.ErrJobNotFound so the caller
// can move on. On success the job is marked completed with its delivery
// ID; on send failure the error is recorded, the attempt counted, and
// the job marked failed. Send errors reach the job row, not the caller,
// so one bad address never stops the loop.
func (e *Executor) Execute(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error {
	j, err := e.jobs.ClaimJob(ctx, jobID, workerID)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}

	e.extensions.EmitJobStarted(ctx, j)

	start := time.Now()
	deliveryID, sendErr := e.send(ctx, j)
	elapsed := time.Since(start)

	now := time.Now().UTC()
	j.UpdatedAt = now

	if sendErr != nil {
		return e.handleFailure(ctx, j, sendErr)
	}
	return e.handleSuccess(ctx, j, deliveryID, now, elapsed)
}

// send loads the issue and subscriber, renders the body, and runs the
// transport call through middleware, backpressure, and the breaker.
func (e *Executor) send(ctx context.Context, j *job.Job) (string, error) {
	iss, err := e.issues.GetIssue(ctx, j.IssueID)
	if err != nil {
		return "", fmt.Errorf("load issue: %w", err)
	}
	sub, err := e.subs.GetSubscriber(ctx, j.SubscriberID)
	if err != nil {
		return "", fmt.Errorf("load subscriber: %w", err)
	}
	if sub.Status == subscriber.StatusUnsubscribed {
		return "", courier.ErrSubscriberUnsubscribed
	}

	html := iss.Body
	if e.renderer != nil {
		html, err = e.renderer.Render(ctx, iss.Body, iss.ID, sub)
		if err != nil {
			return "", fmt.Errorf("render body: %w", err)
		}
	}

	var deliveryID string
	terminal := func(ctx context.Context) error {
		var sendErr error
		deliveryID, sendErr = e.sender.Send(ctx, sub.Email, iss.Subject, html)
		return sendErr
	}

	guarded := terminal
	if e.guard != nil {
		inner := guarded
		guarded = func(ctx context.Context) error {
			return e.guard.Execute(ctx, inner)
		}
	}
	if e.gate != nil {
		inner := guarded
		guarded = func(ctx context.Context) error {
			return e.gate.Execute(ctx, inner)
		}
	}

	if err := e.mw(ctx, j, guarded); err != nil {
		return "", err
	}
	return deliveryID, nil
}

func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, deliveryID string, now time.Time, elapsed time.Duration) error {
	j.Status = job.StatusCompleted
	j.DeliveryID = deliveryID
	j.CompletedAt = &now

	if updateErr := e.jobs.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after send",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	if e.tokens != nil {
		e.tokens.LogDelivery(ctx, j.IssueID, j.SubscriberID, "sent")
	}
	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

func (e *Executor) handleFailure(ctx context.Context, j *job.Job, sendErr error) error {
	j.Attempts++
	j.Error = sendErr.Error()
	j.Status = job.StatusFailed

	if updateErr := e.jobs.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after failure",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.extensions.EmitJobFailed(ctx, j, sendErr)

	e.logger.Warn("delivery failed",
		slog.String("job_id", j.ID.String()),
		slog.String("issue_id", j.IssueID.String()),
		slog.Int("attempts", j.Attempts),
		slog.String("error", sendErr.Error()),
	)
	return sendErr
}
