// Package observability provides a metrics extension that records
// issue and job lifecycle counters via OpenTelemetry.
//
// The send-path middleware already measures per-send latency; this
// extension covers the coarser lifecycle view (issues created and
// closed, jobs enqueued, completed, failed) so dashboards can track
// broadcast throughput without scraping the store.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/squidi0n/fluxao-sub000/ext"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
)

// meterName is the instrumentation scope name for courier metrics.
const meterName = "github.com/squidi0n/fluxao-sub000"

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.IssueCreated = (*MetricsExtension)(nil)
	_ ext.IssueClosed  = (*MetricsExtension)(nil)
	_ ext.JobEnqueued  = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle counters. Register it as a
// courier extension to track issue creation, issue completion, and
// per-job outcomes.
type MetricsExtension struct {
	issuesCreated metric.Int64Counter
	issuesClosed  metric.Int64Counter
	jobsEnqueued  metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
	jobDuration   metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. If none is configured, the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific
// MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully rather than failing registration.
	m.issuesCreated, _ = meter.Int64Counter(
		"courier.issue.created",
		metric.WithDescription("Total number of broadcast issues created"),
		metric.WithUnit("{issue}"),
	)
	m.issuesClosed, _ = meter.Int64Counter(
		"courier.issue.closed",
		metric.WithDescription("Total number of broadcast issues closed"),
		metric.WithUnit("{issue}"),
	)
	m.jobsEnqueued, _ = meter.Int64Counter(
		"courier.job.enqueued",
		metric.WithDescription("Total number of delivery jobs enqueued"),
		metric.WithUnit("{job}"),
	)
	m.jobsCompleted, _ = meter.Int64Counter(
		"courier.job.completed",
		metric.WithDescription("Total number of delivery jobs completed"),
		metric.WithUnit("{job}"),
	)
	m.jobsFailed, _ = meter.Int64Counter(
		"courier.job.failed",
		metric.WithDescription("Total number of delivery jobs failed"),
		metric.WithUnit("{job}"),
	)
	m.jobDuration, _ = meter.Float64Histogram(
		"courier.job.duration",
		metric.WithDescription("End-to-end duration of one delivery job in seconds"),
		metric.WithUnit("s"),
	)

	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Issue lifecycle hooks ───────────────────────────

// OnIssueCreated implements ext.IssueCreated.
func (m *MetricsExtension) OnIssueCreated(ctx context.Context, _ *issue.Issue, _ int) error {
	m.issuesCreated.Add(ctx, 1)
	return nil
}

// OnIssueClosed implements ext.IssueClosed.
func (m *MetricsExtension) OnIssueClosed(ctx context.Context, _ *issue.Issue) error {
	m.issuesClosed.Add(ctx, 1)
	return nil
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobEnqueued implements ext.JobEnqueued.
func (m *MetricsExtension) OnJobEnqueued(ctx context.Context, _ *job.Job) error {
	m.jobsEnqueued.Add(ctx, 1)
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, _ *job.Job, elapsed time.Duration) error {
	m.jobsCompleted.Add(ctx, 1)
	m.jobDuration.Record(ctx, elapsed.Seconds())
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, _ *job.Job, _ error) error {
	m.jobsFailed.Add(ctx, 1)
	return nil
}
