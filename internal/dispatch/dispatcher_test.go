package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/betbot/golighter/internal/domain"
)

func newTestDispatcher(queueBound, poolSize int) (*Dispatcher, *Tracker) {
	tracker := NewTracker()
	d := New(queueBound, poolSize, tracker)
	return d, tracker
}

func shutdownNow(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Shutdown(ctx)
}

func TestLanePreservesOrder(t *testing.T) {
	d, _ := newTestDispatcher(64, 4)
	defer shutdownNow(t, d)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		err := d.Submit(7, fmt.Sprintf("req-%d", i), func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if order[i] != i {
			t.Fatalf("order[%d] = %d, items ran out of submission order", i, order[i])
		}
	}
}

func TestAccountsRunIndependently(t *testing.T) {
	d, _ := newTestDispatcher(8, 4)
	defer shutdownNow(t, d)

	blockA := make(chan struct{})
	startedA := make(chan struct{})
	if err := d.Submit(1, "a-1", func(ctx context.Context) {
		close(startedA)
		<-blockA
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-startedA

	doneB := make(chan struct{})
	if err := d.Submit(2, "b-1", func(ctx context.Context) {
		close(doneB)
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("account 2 was blocked by account 1")
	}
	close(blockA)
}

func TestDuplicateRequestID(t *testing.T) {
	d, tracker := newTestDispatcher(8, 2)
	defer shutdownNow(t, d)

	done := make(chan struct{})
	if err := d.Submit(1, "dup", func(ctx context.Context) {
		tracker.Complete("dup", &domain.ExecutionOutcome{RequestID: "dup", Result: domain.ResultCompleted, FinishedAt: time.Now()})
		close(done)
	}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	<-done

	// The id stays known after completion.
	err := d.Submit(1, "dup", func(ctx context.Context) {})
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("err = %v, want ErrDuplicateRequest", err)
	}
}

func TestBackpressureIsPerAccount(t *testing.T) {
	d, _ := newTestDispatcher(1, 2)
	defer shutdownNow(t, d)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	if err := d.Submit(1, "running", func(ctx context.Context) {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	if err := d.Submit(1, "queued", func(ctx context.Context) {}); err != nil {
		t.Fatalf("queue capacity submit: %v", err)
	}
	err := d.Submit(1, "overflow", func(ctx context.Context) {})
	if !errors.Is(err, ErrBackpressure) {
		t.Fatalf("err = %v, want ErrBackpressure", err)
	}

	// Another account is unaffected.
	if err := d.Submit(2, "other", func(ctx context.Context) {}); err != nil {
		t.Fatalf("other account submit: %v", err)
	}

	// A rejected id may be resubmitted later.
	if _, err := d.tracker.Get("overflow"); !errors.Is(err, ErrUnknownRequest) {
		t.Fatal("backpressured id should be forgotten")
	}
}

func TestPanicDoesNotKillLane(t *testing.T) {
	d, _ := newTestDispatcher(8, 2)
	defer shutdownNow(t, d)

	var panicked string
	d.SetPanicHandler(func(requestID string, recovered any) {
		panicked = requestID
	})

	if err := d.Submit(1, "boom", func(ctx context.Context) {
		panic("kaboom")
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := make(chan struct{})
	if err := d.Submit(1, "after", func(ctx context.Context) {
		close(done)
	}); err != nil {
		t.Fatalf("submit after panic: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lane did not survive the panic")
	}
	if panicked != "boom" {
		t.Fatalf("panic handler got %q, want %q", panicked, "boom")
	}
}

func TestCancelQueuedRequest(t *testing.T) {
	d, tracker := newTestDispatcher(8, 2)
	defer shutdownNow(t, d)

	block := make(chan struct{})
	started := make(chan struct{})
	if err := d.Submit(1, "running", func(ctx context.Context) {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	ran := false
	if err := d.Submit(1, "victim", func(ctx context.Context) {
		ran = true
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := d.Cancel("victim"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	state, err := tracker.State("victim")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != domain.StateCanceled {
		t.Fatalf("state = %s, want canceled", state)
	}

	// Canceling twice, or canceling something in flight, fails.
	if err := d.Cancel("victim"); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("second cancel err = %v, want ErrNotCancelable", err)
	}
	if err := d.Cancel("running"); !errors.Is(err, ErrNotCancelable) {
		t.Fatalf("cancel running err = %v, want ErrNotCancelable", err)
	}

	close(block)
	sentinel := make(chan struct{})
	if err := d.Submit(1, "sentinel", func(ctx context.Context) {
		close(sentinel)
	}); err != nil {
		t.Fatalf("submit sentinel: %v", err)
	}
	select {
	case <-sentinel:
	case <-time.After(time.Second):
		t.Fatal("lane stalled after cancel")
	}
	if ran {
		t.Fatal("canceled task ran anyway")
	}
}

// TestCancelExecuteExclusive hammers the submit/cancel race: for every
// request, either Cancel wins and the task never runs, or the task runs and
// Cancel reports ErrNotCancelable. Both at once is a misreported live trade.
func TestCancelExecuteExclusive(t *testing.T) {
	d, tracker := newTestDispatcher(4, 2)
	defer shutdownNow(t, d)

	const iterations = 5000
	for i := 0; i < iterations; i++ {
		id := fmt.Sprintf("race-%d", i)
		var executed atomic.Bool
		ran := make(chan struct{})
		err := d.Submit(1, id, func(ctx context.Context) {
			executed.Store(true)
			tracker.Complete(id, &domain.ExecutionOutcome{
				RequestID:  id,
				Result:     domain.ResultCompleted,
				FinishedAt: time.Now(),
			})
			close(ran)
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}

		if cerr := d.Cancel(id); cerr == nil {
			// Cancel won. Drain the lane past this item, then the task must
			// not have run and the record must say canceled.
			sentinel := make(chan struct{})
			if err := d.Submit(1, id+"-sentinel", func(ctx context.Context) {
				close(sentinel)
			}); err != nil {
				t.Fatalf("sentinel submit %d: %v", i, err)
			}
			<-sentinel
			if executed.Load() {
				t.Fatalf("iteration %d: cancel succeeded but the task ran", i)
			}
			state, err := tracker.State(id)
			if err != nil {
				t.Fatalf("iteration %d: state: %v", i, err)
			}
			if state != domain.StateCanceled {
				t.Fatalf("iteration %d: state = %s, want canceled", i, state)
			}
		} else {
			// The worker won. The task runs to completion and its outcome
			// stands.
			<-ran
			state, err := tracker.State(id)
			if err != nil {
				t.Fatalf("iteration %d: state: %v", i, err)
			}
			if state != domain.StateCompleted {
				t.Fatalf("iteration %d: state = %s, want completed", i, state)
			}
		}
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	d, _ := newTestDispatcher(8, 2)
	shutdownNow(t, d)

	err := d.Submit(1, "late", func(ctx context.Context) {})
	if !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("err = %v, want ErrShuttingDown", err)
	}
}
