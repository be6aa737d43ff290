// Package risk holds pre-submission checks: the slippage guard and a
// per-account circuit breaker.
package risk

import (
	"errors"
	"math"

	"github.com/betbot/golighter/internal/domain"
)

var (
	ErrSlippageExceeded = errors.New("slippage exceeds limit")
	ErrNoLiquidity      = errors.New("order book side is empty")
)

// SlippageGuard rejects orders whose expected fill price deviates from the
// book mid by more than the configured ratio. The check runs in the execution
// lane after sizing, against a book fetched in the same pass.
type SlippageGuard struct {
	maxSlippage float64
}

func NewSlippageGuard(maxSlippage float64) *SlippageGuard {
	return &SlippageGuard{maxSlippage: maxSlippage}
}

// Check uses the best ask as the expected fill for buys and the best bid for
// sells.
func (g *SlippageGuard) Check(book *domain.BookTop, isAsk bool) error {
	expected := book.BestAsk
	if isAsk {
		expected = book.BestBid
	}
	ref := book.Mid()
	if expected <= 0 || ref <= 0 {
		return ErrNoLiquidity
	}
	deviation := math.Abs(expected-ref) / ref
	if deviation > g.maxSlippage {
		return ErrSlippageExceeded
	}
	return nil
}

// LimitPrice returns the worst acceptable fill price for an order, so the
// slippage bound is enforced by the exchange as well.
func (g *SlippageGuard) LimitPrice(book *domain.BookTop, isAsk bool) float64 {
	ref := book.Mid()
	if isAsk {
		return ref * (1 - g.maxSlippage)
	}
	return ref * (1 + g.maxSlippage)
}
