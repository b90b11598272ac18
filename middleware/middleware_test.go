package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	courier "github.com/squidi0n/fluxao-sub000"
	"github.com/squidi0n/fluxao-sub000/id"
	"github.com/squidi0n/fluxao-sub000/job"
	mw "github.com/squidi0n/fluxao-sub000/middleware"
)

func newTestJob() *job.Job {
	return &job.Job{
		Entity:       courier.NewEntity(),
		ID:           id.NewJobID(),
		IssueID:      id.NewIssueID(),
		SubscriberID: id.NewSubscriberID(),
		Status:       job.StatusProcessing,
		Attempts:     1,
	}
}

func TestChain_Order(t *testing.T) {
	t.Parallel()
	var order []string
	mk := func(name string) mw.Middleware {
		return func(ctx context.Context, _ *job.Job, next mw.Handler) error {
			order = append(order, name+":pre")
			err := next(ctx)
			order = append(order, name+":post")
			return err
		}
	}

	chain := mw.Chain(mk("outer"), mk("inner"))
	err := chain(context.Background(), newTestJob(), func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatalf("chain: %v", err)
	}

	want := []string{"outer:pre", "inner:pre", "handler", "inner:post", "outer:post"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestChain_Empty(t *testing.T) {
	t.Parallel()
	chain := mw.Chain()
	ran := false
	if err := chain(context.Background(), newTestJob(), func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if !ran {
		t.Error("handler not invoked by empty chain")
	}
}

func TestChain_ErrorPropagates(t *testing.T) {
	t.Parallel()
	errSend := errors.New("send broke")
	chain := mw.Chain(mw.Recover(slog.Default()))
	err := chain(context.Background(), newTestJob(), func(context.Context) error {
		return errSend
	})
	if !errors.Is(err, errSend) {
		t.Errorf("err = %v, want %v", err, errSend)
	}
}

func TestRecover_ConvertsPanic(t *testing.T) {
	t.Parallel()
	m := mw.Recover(slog.Default())
	j := newTestJob()

	err := m(context.Background(), j, func(context.Context) error {
		panic("template blew up")
	})
	if err == nil {
		t.Fatal("panic not converted to error")
	}
	if !strings.Contains(err.Error(), "template blew up") {
		t.Errorf("err = %v, want panic message included", err)
	}
}

func TestRecover_PassThrough(t *testing.T) {
	t.Parallel()
	m := mw.Recover(slog.Default())
	if err := m(context.Background(), newTestJob(), func(context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestTimeout_EnforcesDeadline(t *testing.T) {
	t.Parallel()
	m := mw.Timeout(20 * time.Millisecond)

	err := m(context.Background(), newTestJob(), func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestTimeout_ZeroDisables(t *testing.T) {
	t.Parallel()
	m := mw.Timeout(0)
	err := m(context.Background(), newTestJob(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("deadline set with zero timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestLogging_PassesThroughError(t *testing.T) {
	t.Parallel()
	m := mw.Logging(slog.Default())
	wantErr := errors.New("provider 500")
	err := m(context.Background(), newTestJob(), func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
