package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/betbot/golighter/internal/domain"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request id")
	ErrUnknownRequest   = errors.New("unknown request id")
)

// terminalRetention keeps finished records queryable for a while before the
// janitor sweeps them.
const terminalRetention = time.Hour

// RequestRecord is the tracked lifecycle of one request.
type RequestRecord struct {
	RequestID    string                   `json:"request_id"`
	AccountIndex int                      `json:"account_index"`
	State        domain.RequestState      `json:"state"`
	Outcome      *domain.ExecutionOutcome `json:"outcome,omitempty"`
	ReceivedAt   time.Time                `json:"received_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// Tracker remembers every accepted request id and its lifecycle state. It is
// the duplicate-detection authority: Register refuses ids it has seen, even
// after the request finished.
type Tracker struct {
	mu   sync.RWMutex
	reqs map[string]*RequestRecord
}

func NewTracker() *Tracker {
	return &Tracker{reqs: make(map[string]*RequestRecord)}
}

// Register records a new request in Received state. Returns
// ErrDuplicateRequest if the id was ever accepted before.
func (t *Tracker) Register(requestID string, accountIndex int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.reqs[requestID]; ok {
		return ErrDuplicateRequest
	}
	now := time.Now()
	t.reqs[requestID] = &RequestRecord{
		RequestID:    requestID,
		AccountIndex: accountIndex,
		State:        domain.StateReceived,
		ReceivedAt:   now,
		UpdatedAt:    now,
	}
	return nil
}

// Drop forgets a request that was registered but never queued, so its id may
// be resubmitted after backpressure.
func (t *Tracker) Drop(requestID string) {
	t.mu.Lock()
	delete(t.reqs, requestID)
	t.mu.Unlock()
}

// Transition moves a request to a non-terminal state. Terminal records are
// never overwritten.
func (t *Tracker) Transition(requestID string, state domain.RequestState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.reqs[requestID]
	if !ok || rec.State.Terminal() {
		return
	}
	rec.State = state
	rec.UpdatedAt = time.Now()
}

// Complete records the terminal outcome. The first terminal write wins;
// later writes are ignored so a request finishes exactly once.
func (t *Tracker) Complete(requestID string, outcome *domain.ExecutionOutcome) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.reqs[requestID]
	if !ok || rec.State.Terminal() {
		return false
	}
	switch outcome.Result {
	case domain.ResultCompleted:
		rec.State = domain.StateCompleted
	case domain.ResultRejected:
		rec.State = domain.StateRejected
	case domain.ResultCanceled:
		rec.State = domain.StateCanceled
	default:
		rec.State = domain.StateFailed
	}
	rec.Outcome = outcome
	rec.UpdatedAt = time.Now()
	return true
}

// Get returns a copy of the record for a request id.
func (t *Tracker) Get(requestID string) (*RequestRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.reqs[requestID]
	if !ok {
		return nil, ErrUnknownRequest
	}
	cp := *rec
	return &cp, nil
}

// State returns just the lifecycle state.
func (t *Tracker) State(requestID string) (domain.RequestState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.reqs[requestID]
	if !ok {
		return "", ErrUnknownRequest
	}
	return rec.State, nil
}

// Sweep removes terminal records older than the retention window and returns
// how many were removed. Duplicate detection covers only ids still inside
// the window.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, rec := range t.reqs {
		if rec.State.Terminal() && now.Sub(rec.UpdatedAt) > terminalRetention {
			delete(t.reqs, id)
			removed++
		}
	}
	return removed
}
