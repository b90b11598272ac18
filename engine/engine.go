package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/audit"
	"github.com/squidi0n/fluxao-sub000/backpressure"
	"github.com/squidi0n/fluxao-sub000/batch"
	"github.com/squidi0n/fluxao-sub000/breaker"
	"github.com/squidi0n/fluxao-sub000/ext"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/idempotency"
	"github.com/squidi0n/fluxao-sub000/issue"
	issuehook "github.com/squidi0n/fluxao-sub000/issue_hook"
	"github.com/squidi0n/fluxao-sub000/job"
	mw "github.com/squidi0n/fluxao-sub000/middleware"
	"github.com/squidi0n/fluxao-sub000/render"
	"github.com/squidi0n/fluxao-sub000/schedule"
	"github.com/squidi0n/fluxao-sub000/subscriber"
	"github.com/squidi0n/fluxao-sub000/token"
	"github.com/squidi0n/fluxao-sub000/transport"
	"github.com/squidi0n/fluxao-sub000/worker"
)

// Deduper guards the enqueue boundary against duplicate broadcasts.
// Both idempotency.Manager (in-process) and idempotency.RedisManager
// (shared) satisfy it.
type Deduper interface {
	Execute(ctx context.Context, key string, fn idempotency.Fn, opts ...idempotency.ExecuteOption) (any, error)
}

// EnqueueResult summarizes one broadcast enqueue.
type EnqueueResult struct {
	IssueID  id.IssueID `json:"issue_id"`
	JobCount int        `json:"job_count"`
	Skipped  int        `json:"skipped"`
}

// Stats aggregates job counts for one issue, or globally when the
// issue filter is id.Nil.
type Stats struct {
	job.Counts

	// SuccessRate is completed/total as a percentage (0-100). Zero when
	// no jobs exist.
	SuccessRate float64 `json:"success_rate"`
}

// Orchestrator drives the broadcast pipeline: it creates issues,
// materializes per-subscriber jobs idempotently, hands batches to the
// dispatch boundary, and owns the worker pool and guards.
// Use Build() to create one from a Courier.
type Orchestrator struct {
	c          *courier.Courier
	extensions *ext.Registry
	issues     issue.Store
	jobs       job.Store
	subs       subscriber.Store
	sink       audit.Sink

	deduper    Deduper
	ownDeduper *idempotency.Manager
	dispatcher *batch.Dispatcher
	guard      *breaker.Breaker
	gate       *backpressure.Manager
	pool       *worker.Pool

	sender      transport.Sender
	tokens      *token.Service
	renderer    *render.Renderer
	mws         []mw.Middleware
	logger      *slog.Logger
	closeIssues bool

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExtension registers an extension with the orchestrator.
func WithExtension(e ext.Extension) Option {
	return func(o *Orchestrator) {
		o.extensions.Register(e)
	}
}

// WithMiddleware appends middleware to the send chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(o *Orchestrator) {
		o.mws = append(o.mws, m)
	}
}

// WithSender sets the mail transport for the worker pool.
func WithSender(s transport.Sender) Option {
	return func(o *Orchestrator) { o.sender = s }
}

// WithTokens sets the token service used for body rendering and
// delivery interaction logging.
func WithTokens(t *token.Service) Option {
	return func(o *Orchestrator) { o.tokens = t }
}

// WithRenderer sets the body renderer. When unset but a token service
// is provided, a default renderer is built from it.
func WithRenderer(r *render.Renderer) Option {
	return func(o *Orchestrator) { o.renderer = r }
}

// WithDeduper replaces the in-process idempotency manager, typically
// with idempotency.RedisManager for multi-instance deployments.
func WithDeduper(d Deduper) Option {
	return func(o *Orchestrator) { o.deduper = d }
}

// WithDispatcher sets the batch dispatcher for the hand-off to an
// external work queue. Without one, materialized jobs are picked up
// directly by the polling worker pool.
func WithDispatcher(d *batch.Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithIssueClose registers the issue_hook extension so an issue
// transitions to "closed" once every job reaches a terminal status.
// Without it an issue's status stays at "sending" and callers derive
// completion from Stats.
func WithIssueClose() Option {
	return func(o *Orchestrator) { o.closeIssues = true }
}

// WithTracerProvider sets a custom OTel TracerProvider.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *Orchestrator) { o.meterProvider = mp }
}

// Build creates an Orchestrator from an existing Courier.
// The Courier's store must implement the issue, job, and subscriber
// store interfaces plus the audit sink; store.Store covers all of them.
func Build(c *courier.Courier, opts ...Option) (*Orchestrator, error) {
	logger := c.Logger()
	st := c.Store()

	if st == nil {
		return nil, courier.ErrNoStore
	}

	is, ok := st.(issue.Store)
	if !ok {
		return nil, fmt.Errorf("courier: store does not implement issue.Store")
	}
	js, ok := st.(job.Store)
	if !ok {
		return nil, fmt.Errorf("courier: store does not implement job.Store")
	}
	ss, ok := st.(subscriber.Store)
	if !ok {
		return nil, fmt.Errorf("courier: store does not implement subscriber.Store")
	}
	sink, ok := st.(audit.Sink)
	if !ok {
		return nil, fmt.Errorf("courier: store does not implement audit.Sink")
	}

	o := &Orchestrator{
		c:          c,
		extensions: ext.NewRegistry(logger),
		issues:     is,
		jobs:       js,
		subs:       ss,
		sink:       sink,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(o)
	}

	config := c.Config()

	// Default deduper: in-process idempotency manager with the
	// configured TTL. Its sweep lifecycle is tied to Start/Stop.
	if o.deduper == nil {
		o.ownDeduper = idempotency.New(config.IdempotencyTTL, idempotency.WithLogger(logger))
		o.deduper = o.ownDeduper
	}

	if o.renderer == nil && o.tokens != nil {
		o.renderer = render.New(o.tokens, render.WithLogger(logger))
	}

	// Opt-in issue closing. Without it an issue's status stays at
	// "sending" and completion is derived from job aggregates via Stats.
	if o.closeIssues {
		o.extensions.Register(issuehook.New(is, js,
			issuehook.WithLogger(logger),
			issuehook.WithClosedFunc(func(ctx context.Context, iss *issue.Issue) {
				o.extensions.EmitIssueClosed(ctx, iss)
			}),
		))
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if o.tracerProvider != nil {
		tracer := o.tracerProvider.Tracer("github.com/squidi0n/fluxao-sub000")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if o.meterProvider != nil {
		meter := o.meterProvider.Meter("github.com/squidi0n/fluxao-sub000")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(config.SendTimeout),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(o.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, o.mws...)

	// Reliability guards around the transport.
	o.guard = breaker.New("transport", config.BreakerThreshold, config.BreakerTimeout,
		breaker.WithLogger(logger))
	o.gate = backpressure.New(config.Concurrency, backpressure.WithLogger(logger))

	if o.sender == nil {
		return nil, courier.ErrNoSender
	}

	executor := worker.NewExecutor(js, is, ss, o.sender,
		worker.WithRenderer(o.renderer),
		worker.WithTokens(o.tokens),
		worker.WithBreaker(o.guard),
		worker.WithBackpressure(o.gate),
		worker.WithExtensions(o.extensions),
		worker.WithMiddleware(allMws...),
		worker.WithExecutorLogger(logger),
	)

	o.pool = worker.NewPool(js, executor,
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPollInterval(config.PollInterval),
		worker.WithPoolLogger(logger),
	)

	// Wire back into the Courier.
	c.SetPool(o.pool)
	c.SetExtensions(o.extensions)

	return o, nil
}

// Start begins job processing.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.ownDeduper != nil {
		o.ownDeduper.Start()
	}
	return o.c.Start(ctx)
}

// Stop gracefully shuts down the orchestrator.
func (o *Orchestrator) Stop(ctx context.Context) error {
	err := o.c.Stop(ctx)
	if o.ownDeduper != nil {
		o.ownDeduper.Stop()
	}
	return err
}

// ──────────────────────────────────────────────────
// Enqueue
// ──────────────────────────────────────────────────

// EnqueueNewsletter creates a broadcast issue for the target subscriber
// set and materializes one pending job per subscriber.
//
// A same-day re-send of the same subject and body is rejected with
// courier.ErrDuplicateOperation. Re-invocation after a partial failure
// is safe: already-materialized jobs are counted as skipped, never
// duplicated. An empty target set marks the issue no_subscribers and
// fails the whole call with courier.ErrNoSubscribers.
func (o *Orchestrator) EnqueueNewsletter(ctx context.Context, subject, body string, target issue.Target, actorID string) (*EnqueueResult, error) {
	key := idempotency.GenerateKey("newsletter.enqueue",
		subject, firstN(body, 100), time.Now().UTC().Format("2006-01-02"))

	res, err := o.deduper.Execute(ctx, key, func(ctx context.Context) (any, error) {
		return o.enqueue(ctx, subject, body, target, actorID)
	})
	if err != nil {
		if errors.Is(err, courier.ErrDuplicateOperation) {
			return nil, fmt.Errorf("a similar newsletter was recently sent: %w", err)
		}
		return nil, err
	}

	result, ok := res.(*EnqueueResult)
	if !ok {
		return nil, fmt.Errorf("courier: unexpected enqueue result type %T", res)
	}
	return result, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, subject, body string, target issue.Target, actorID string) (*EnqueueResult, error) {
	iss := &issue.Issue{
		Entity:  courier.NewEntity(),
		ID:      id.NewIssueID(),
		Subject: subject,
		Body:    body,
		Status:  issue.StatusSending,
	}
	if err := o.issues.CreateIssue(ctx, iss); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	targets, err := o.resolveTarget(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve target %q: %w", target, err)
	}

	if len(targets) == 0 {
		if updErr := o.issues.UpdateIssueStatus(ctx, iss.ID, issue.StatusNoSubscribers); updErr != nil {
			o.logger.Error("failed to mark issue no_subscribers",
				slog.String("issue_id", iss.ID.String()),
				slog.String("error", updErr.Error()),
			)
		}
		return nil, fmt.Errorf("target %q: %w", target, courier.ErrNoSubscribers)
	}

	result, err := o.materialize(ctx, iss, targets)
	if err != nil {
		return nil, err
	}

	o.recordEnqueue(ctx, iss, target, actorID, result)
	o.extensions.EmitIssueCreated(ctx, iss, result.JobCount)

	o.logger.Info("newsletter enqueued",
		slog.String("issue_id", iss.ID.String()),
		slog.String("subject", subject),
		slog.String("target", string(target)),
		slog.Int("job_count", result.JobCount),
		slog.Int("skipped", result.Skipped),
	)

	return result, nil
}

// materialize creates one pending job per subscriber, skipping pairs
// that already have one, and hands the new jobs to the dispatch
// boundary.
func (o *Orchestrator) materialize(ctx context.Context, iss *issue.Issue, targets []*subscriber.Subscriber) (*EnqueueResult, error) {
	result := &EnqueueResult{IssueID: iss.ID}
	items := make([]batch.Item, 0, len(targets))

	for _, sub := range targets {
		j := &job.Job{
			Entity:       courier.NewEntity(),
			ID:           id.NewJobID(),
			IssueID:      iss.ID,
			SubscriberID: sub.ID,
			Status:       job.StatusPending,
		}
		if createErr := o.jobs.CreateJob(ctx, j); createErr != nil {
			if errors.Is(createErr, courier.ErrJobAlreadyExists) {
				result.Skipped++
				continue
			}
			return nil, fmt.Errorf("create job for subscriber %s: %w", sub.ID, createErr)
		}
		result.JobCount++
		items = append(items, batch.Item{
			JobID:        j.ID,
			IssueID:      j.IssueID,
			SubscriberID: j.SubscriberID,
			Dedupe:       j.DedupeKey(),
		})
		o.extensions.EmitJobEnqueued(ctx, j)
	}

	o.handOff(ctx, items)
	return result, nil
}

// ResumeIssue re-materializes jobs for an existing issue after a
// partial enqueue failure. Subscribers whose job already exists are
// counted as skipped, so resuming a fully-materialized issue yields
// skipped == subscriber count and creates no new rows.
func (o *Orchestrator) ResumeIssue(ctx context.Context, issueID id.IssueID, target issue.Target) (*EnqueueResult, error) {
	iss, err := o.issues.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	targets, err := o.resolveTarget(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve target %q: %w", target, err)
	}

	result, err := o.materialize(ctx, iss, targets)
	if err != nil {
		return nil, err
	}

	o.logger.Info("issue re-materialized",
		slog.String("issue_id", issueID.String()),
		slog.Int("job_count", result.JobCount),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// resolveTarget loads the subscriber set for a broadcast target.
func (o *Orchestrator) resolveTarget(ctx context.Context, target issue.Target) ([]*subscriber.Subscriber, error) {
	opts := subscriber.ListOpts{}
	switch target {
	case issue.TargetVerified:
		opts.Status = subscriber.StatusVerified
	case issue.TargetAll:
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}
	return o.subs.ListSubscribers(ctx, opts)
}

// handOff pushes materialized jobs to the dispatch boundary. Chunk
// failures are logged, not surfaced: the jobs stay pending and the
// polling pool picks them up regardless.
func (o *Orchestrator) handOff(ctx context.Context, items []batch.Item) {
	if o.dispatcher == nil || len(items) == 0 {
		return
	}
	results, err := o.dispatcher.Dispatch(ctx, items)
	if err != nil {
		o.logger.Error("dispatch aborted", slog.String("error", err.Error()))
		return
	}
	if results.Failed > 0 {
		o.logger.Warn("dispatch finished with failed chunks",
			slog.Int("enqueued", results.Enqueued),
			slog.Int("failed", results.Failed),
		)
	}
}

// recordEnqueue appends the single audit record summarizing the
// broadcast. Sink errors are logged, never surfaced.
func (o *Orchestrator) recordEnqueue(ctx context.Context, iss *issue.Issue, target issue.Target, actorID string, res *EnqueueResult) {
	evt := &audit.Event{
		Entity:     courier.NewEntity(),
		ID:         id.NewAuditID(),
		Action:     "newsletter.enqueued",
		Resource:   "issue",
		Category:   "courier.issue",
		ActorID:    actorID,
		ResourceID: iss.ID.String(),
		Outcome:    audit.OutcomeSuccess,
		Severity:   audit.SeverityInfo,
		Metadata: map[string]any{
			"subject":   iss.Subject,
			"target":    string(target),
			"job_count": res.JobCount,
			"skipped":   res.Skipped,
		},
	}
	if err := o.sink.Record(ctx, evt); err != nil {
		o.logger.Warn("audit record failed",
			slog.String("issue_id", iss.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// ──────────────────────────────────────────────────
// Stats, retry, inspection
// ──────────────────────────────────────────────────

// Stats aggregates job counts for issueID, or across all issues when
// issueID is id.Nil. The per-status counts run in parallel.
func (o *Orchestrator) Stats(ctx context.Context, issueID id.IssueID) (*Stats, error) {
	var s Stats
	g, ctx := errgroup.WithContext(ctx)

	count := func(status job.Status, dst *int64) func() error {
		return func() error {
			n, err := o.jobs.CountJobs(ctx, job.CountOpts{IssueID: issueID, Status: status})
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}

	g.Go(count(job.StatusPending, &s.Pending))
	g.Go(count(job.StatusProcessing, &s.Processing))
	g.Go(count(job.StatusCompleted, &s.Completed))
	g.Go(count(job.StatusFailed, &s.Failed))

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}

	s.Total = s.Pending + s.Processing + s.Completed + s.Failed
	if s.Total > 0 {
		s.SuccessRate = float64(s.Completed) / float64(s.Total) * 100
	}
	return &s, nil
}

// RetryFailedJob resets a failed job to pending and resubmits it to the
// dispatch boundary under a fresh dedupe suffix so the retry is not
// swallowed as a duplicate of the original dispatch. Jobs in any other
// status are rejected with courier.ErrJobNotRetryable. No retry cap is
// enforced; operators decide when to stop.
func (o *Orchestrator) RetryFailedJob(ctx context.Context, jobID id.JobID) error {
	j, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusFailed {
		return fmt.Errorf("job %s has status %q: %w", jobID, j.Status, courier.ErrJobNotRetryable)
	}

	j.Status = job.StatusPending
	j.Attempts = 0
	j.Error = ""
	j.WorkerID = id.WorkerID{}
	j.StartedAt = nil
	j.CompletedAt = nil
	j.UpdatedAt = time.Now().UTC()

	if err := o.jobs.UpdateJob(ctx, j); err != nil {
		return fmt.Errorf("reset job %s: %w", jobID, err)
	}

	o.handOff(ctx, []batch.Item{{
		JobID:        j.ID,
		IssueID:      j.IssueID,
		SubscriberID: j.SubscriberID,
		Dedupe:       j.DedupeKey() + ":" + strconv.FormatInt(time.Now().UnixNano(), 10),
	}})

	o.extensions.EmitJobEnqueued(ctx, j)

	o.logger.Info("failed job reset for retry", slog.String("job_id", jobID.String()))
	return nil
}

// FailedJobs returns up to limit failed jobs, oldest first.
func (o *Orchestrator) FailedJobs(ctx context.Context, limit int) ([]*job.Job, error) {
	return o.jobs.ListJobsByStatus(ctx, job.StatusFailed, job.ListOpts{Limit: limit})
}

// Issues returns broadcast issues, newest first.
func (o *Orchestrator) Issues(ctx context.Context, opts issue.ListOpts) ([]*issue.Issue, error) {
	return o.issues.ListIssues(ctx, opts)
}

// Extensions returns the extension registry.
func (o *Orchestrator) Extensions() *ext.Registry { return o.extensions }

// Breaker returns the transport circuit breaker for observability and
// manual operator override.
func (o *Orchestrator) Breaker() *breaker.Breaker { return o.guard }

// Backpressure returns the send concurrency gate.
func (o *Orchestrator) Backpressure() *backpressure.Manager { return o.gate }

// Pool returns the worker pool.
func (o *Orchestrator) Pool() *worker.Pool { return o.pool }

// ScheduleFunc adapts the orchestrator for the schedule package. The
// returned function enqueues broadcasts on behalf of actorID and
// discards the enqueue result; duplicate-broadcast rejections surface
// as errors and are logged by the scheduler, not retried.
func (o *Orchestrator) ScheduleFunc(actorID string) schedule.EnqueueFunc {
	return func(ctx context.Context, subject, body string, target issue.Target) error {
		_, err := o.EnqueueNewsletter(ctx, subject, body, target, actorID)
		return err
	}
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
