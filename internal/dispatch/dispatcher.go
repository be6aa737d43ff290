// Package dispatch serializes execution per account: one bounded queue and
// one worker per account, created lazily, under a global concurrency ceiling.
package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
)

var log = logrus.WithField("component", "dispatch")

var (
	ErrBackpressure  = errors.New("account queue full")
	ErrNotCancelable = errors.New("request is not queued")
	ErrShuttingDown  = errors.New("dispatcher is shutting down")
)

// Task executes one queued request to a terminal state. It must emit the
// request's outcome itself; the dispatcher only guarantees ordering and
// isolation.
type Task func(ctx context.Context)

type item struct {
	requestID string
	run       Task
	canceled  bool // guarded by Dispatcher.mu
}

type lane struct {
	accountIndex int
	items        chan *item
}

// Dispatcher owns all lanes. Items within a lane run strictly in FIFO order;
// lanes for different accounts run concurrently up to the pool ceiling.
type Dispatcher struct {
	queueBound int
	sem        chan struct{}
	tracker    *Tracker

	mu      sync.Mutex
	lanes   map[int]*lane
	pending map[string]*item
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// onPanic is the terminal-outcome fallback when a task panics before
	// emitting its own outcome.
	onPanic func(requestID string, recovered any)
}

func New(queueBound, workerPoolSize int, tracker *Tracker) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queueBound: queueBound,
		sem:        make(chan struct{}, workerPoolSize),
		tracker:    tracker,
		lanes:      make(map[int]*lane),
		pending:    make(map[string]*item),
		ctx:        ctx,
		cancel:     cancel,
	}
	d.wg.Add(1)
	go d.janitor()
	return d
}

// SetPanicHandler installs the fallback invoked when a task panics.
func (d *Dispatcher) SetPanicHandler(fn func(requestID string, recovered any)) {
	d.onPanic = fn
}

// Submit registers the request and enqueues it on the account's lane.
// Non-blocking: a full lane returns ErrBackpressure and the id is forgotten,
// so the caller may resubmit.
func (d *Dispatcher) Submit(accountIndex int, requestID string, run Task) error {
	if err := d.tracker.Register(requestID, accountIndex); err != nil {
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.tracker.Drop(requestID)
		return ErrShuttingDown
	}
	ln := d.lanes[accountIndex]
	if ln == nil {
		ln = &lane{accountIndex: accountIndex, items: make(chan *item, d.queueBound)}
		d.lanes[accountIndex] = ln
		d.wg.Add(1)
		go d.worker(ln)
	}
	it := &item{requestID: requestID, run: run}
	d.pending[requestID] = it
	d.mu.Unlock()

	select {
	case ln.items <- it:
		d.tracker.Transition(requestID, domain.StateQueued)
		return nil
	default:
		d.mu.Lock()
		delete(d.pending, requestID)
		d.mu.Unlock()
		d.tracker.Drop(requestID)
		return ErrBackpressure
	}
}

// Cancel removes a still-queued request. In-flight and finished requests are
// not cancelable. The claim is made under the dispatcher lock, the same lock
// the worker takes to dequeue, so exactly one side wins: a canceled item never
// runs and a dequeued item is never reported canceled.
func (d *Dispatcher) Cancel(requestID string) error {
	d.mu.Lock()
	it, ok := d.pending[requestID]
	if !ok || it.canceled {
		d.mu.Unlock()
		return ErrNotCancelable
	}
	state, err := d.tracker.State(requestID)
	if err != nil || state != domain.StateQueued {
		d.mu.Unlock()
		return ErrNotCancelable
	}
	it.canceled = true
	delete(d.pending, requestID)
	d.mu.Unlock()

	d.tracker.Complete(requestID, &domain.ExecutionOutcome{
		RequestID:  requestID,
		Result:     domain.ResultCanceled,
		Detail:     "canceled while queued",
		FinishedAt: time.Now(),
	})
	log.WithField("request", requestID).Info("queued request canceled")
	return nil
}

func (d *Dispatcher) worker(ln *lane) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case it := <-ln.items:
			d.mu.Lock()
			delete(d.pending, it.requestID)
			canceled := it.canceled
			d.mu.Unlock()
			if canceled {
				continue
			}

			select {
			case d.sem <- struct{}{}:
			case <-d.ctx.Done():
				return
			}
			d.runIsolated(ln, it)
			<-d.sem
		}
	}
}

// runIsolated executes one item, surviving panics so the lane keeps serving
// later items.
func (d *Dispatcher) runIsolated(ln *lane, it *item) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logrus.Fields{
				"account": ln.accountIndex,
				"request": it.requestID,
			}).Errorf("task panic: %v\n%s", r, debug.Stack())
			if d.onPanic != nil {
				d.onPanic(it.requestID, r)
			}
		}
	}()
	it.run(d.ctx)
}

// janitor sweeps old terminal records out of the tracker.
func (d *Dispatcher) janitor() {
	defer d.wg.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-ticker.C:
			if n := d.tracker.Sweep(now); n > 0 {
				log.Debugf("swept %d finished requests", n)
			}
		}
	}
}

// Shutdown stops accepting work and waits for workers to finish their current
// item or ctx to expire. Queued items that never ran stay queued-in-name-only;
// their ids are not replayed anywhere.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("all lanes drained")
	case <-ctx.Done():
		log.Warnf("lane shutdown deadline exceeded: %v", ctx.Err())
	}
}
