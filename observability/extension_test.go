package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/issue"
	"github.com/squidi0n/fluxao-sub000/job"
	"github.com/squidi0n/fluxao-sub000/observability"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64] data type", name)
	}
	if len(sum.DataPoints) == 0 {
		t.Fatalf("%s: no data points recorded", name)
	}
	return sum.DataPoints[0].Value
}

func newTestJob() *job.Job {
	return &job.Job{
		Entity:       courier.NewEntity(),
		ID:           id.NewJobID(),
		IssueID:      id.NewIssueID(),
		SubscriberID: id.NewSubscriberID(),
		Status:       job.StatusPending,
	}
}

func TestMetricsExtension_CountsLifecycle(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))
	ctx := context.Background()

	iss := &issue.Issue{Entity: courier.NewEntity(), ID: id.NewIssueID(), Subject: "Digest"}
	j := newTestJob()

	if err := m.OnIssueCreated(ctx, iss, 3); err != nil {
		t.Fatal(err)
	}
	if err := m.OnIssueClosed(ctx, iss); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if err := m.OnJobEnqueued(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.OnJobCompleted(ctx, j, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := m.OnJobFailed(ctx, j, errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	rm := collectMetrics(t, reader)
	if v := counterValue(t, rm, "courier.issue.created"); v != 1 {
		t.Errorf("issue.created = %d, want 1", v)
	}
	if v := counterValue(t, rm, "courier.issue.closed"); v != 1 {
		t.Errorf("issue.closed = %d, want 1", v)
	}
	if v := counterValue(t, rm, "courier.job.enqueued"); v != 2 {
		t.Errorf("job.enqueued = %d, want 2", v)
	}
	if v := counterValue(t, rm, "courier.job.completed"); v != 1 {
		t.Errorf("job.completed = %d, want 1", v)
	}
	if v := counterValue(t, rm, "courier.job.failed"); v != 1 {
		t.Errorf("job.failed = %d, want 1", v)
	}
}

func TestMetricsExtension_RecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	m := observability.NewMetricsExtensionWithMeter(mp.Meter("test"))

	if err := m.OnJobCompleted(context.Background(), newTestJob(), 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "courier.job.duration")
	if metric == nil {
		t.Fatal("courier.job.duration metric not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Fatal("expected one duration data point")
	}
}

func TestMetricsExtension_Name(t *testing.T) {
	if got := observability.NewMetricsExtension().Name(); got == "" {
		t.Error("extension name must not be empty")
	}
}
