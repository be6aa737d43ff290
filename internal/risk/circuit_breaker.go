package risk

import (
	"errors"
	"sync/atomic"
)

// ErrCircuitBreakerOpen means the account is halted and new executions are
// refused until resumed.
var ErrCircuitBreakerOpen = errors.New("circuit breaker open")

// CircuitBreaker halts one account after too many consecutive execution
// failures. Threshold <= 0 disables the breaker. Atomics keep the fast path
// lock-free; it runs once per queued item.
type CircuitBreaker struct {
	halted               atomic.Bool
	consecutiveErrors    atomic.Int64
	maxConsecutiveErrors int64
}

func NewCircuitBreaker(maxConsecutiveErrors int64) *CircuitBreaker {
	return &CircuitBreaker{maxConsecutiveErrors: maxConsecutiveErrors}
}

// AllowTrading reports whether the account may execute.
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}
	if cb.halted.Load() {
		return ErrCircuitBreakerOpen
	}
	if cb.maxConsecutiveErrors > 0 && cb.consecutiveErrors.Load() >= cb.maxConsecutiveErrors {
		cb.halted.Store(true)
		return ErrCircuitBreakerOpen
	}
	return nil
}

// OnSuccess clears the consecutive error count.
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Store(0)
}

// OnError bumps the consecutive error count.
func (cb *CircuitBreaker) OnError() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Add(1)
}

// Resume re-enables a halted account and clears the error count.
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.consecutiveErrors.Store(0)
}
