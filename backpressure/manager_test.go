package backpressure_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/squidi0n/fluxao-sub000/backpressure"
)

func TestExecute_PassesThroughUnderLimit(t *testing.T) {
	t.Parallel()
	m := backpressure.New(2)

	errBoom := errors.New("boom")
	if err := m.Execute(context.Background(), func(context.Context) error { return errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want %v", err, errBoom)
	}

	st := m.Status()
	if st.ActiveJobs != 0 || st.QueuedJobs != 0 {
		t.Errorf("status after completion = %+v, want idle", st)
	}
}

func TestExecute_BoundsConcurrency(t *testing.T) {
	t.Parallel()
	const limit = 3
	const jobs = 20
	m := backpressure.New(limit)

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Execute(context.Background(), func(context.Context) error {
				cur := active.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > limit {
		t.Errorf("peak concurrency = %d, want <= %d", got, limit)
	}
	st := m.Status()
	if st.ActiveJobs != 0 || st.QueuedJobs != 0 {
		t.Errorf("status after drain = %+v, want idle", st)
	}
}

func TestExecute_FIFOOrder(t *testing.T) {
	t.Parallel()
	m := backpressure.New(1)

	// Occupy the only slot so every submission below queues.
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	const waiters = 5
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Execute(context.Background(), func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Give each waiter time to enqueue before the next arrives.
		waitForQueued(t, m, i+1)
	}

	close(hold)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("admission order = %v, want FIFO", order)
		}
	}
}

func TestExecute_CancelWhileQueued(t *testing.T) {
	t.Parallel()
	m := backpressure.New(1)

	hold := make(chan struct{})
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Execute(ctx, func(context.Context) error { return nil })
	}()
	waitForQueued(t, m, 1)

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := m.Status().QueuedJobs; got != 0 {
		t.Errorf("queued after cancel = %d, want 0", got)
	}

	close(hold)
	<-done
}

func TestStatus_ReportsLoad(t *testing.T) {
	t.Parallel()
	m := backpressure.New(2)

	hold := make(chan struct{})
	var started sync.WaitGroup
	for range 2 {
		started.Add(1)
		go func() {
			_ = m.Execute(context.Background(), func(context.Context) error {
				started.Done()
				<-hold
				return nil
			})
		}()
	}
	started.Wait()

	go func() {
		_ = m.Execute(context.Background(), func(context.Context) error { return nil })
	}()
	waitForQueued(t, m, 1)

	st := m.Status()
	if st.ActiveJobs != 2 || st.QueuedJobs != 1 || st.MaxConcurrency != 2 {
		t.Errorf("status = %+v, want 2 active, 1 queued, max 2", st)
	}
	close(hold)
}

func waitForQueued(t *testing.T, m *backpressure.Manager, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status().QueuedJobs >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue never reached %d waiters", n)
}
