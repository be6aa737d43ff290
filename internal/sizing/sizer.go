// Package sizing turns intents into signed base-amount deltas against a fresh
// account snapshot.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/betbot/golighter/internal/domain"
)

var (
	ErrInsufficientBalance = errors.New("order below market minimums")
	ErrNoPosition          = errors.New("no open position")
	ErrNothingToDo         = errors.New("position already at target")
)

// Plan is a sized order ready for the risk check: a signed base delta and its
// order-side mapping.
type Plan struct {
	// BaseDelta is positive for buys and negative for sells.
	BaseDelta float64
	IsAsk     bool
	// ReduceOnly is set when the delta shrinks an existing position without
	// opening new exposure.
	ReduceOnly bool
	// QuoteNotional is |BaseDelta| at the reference price, for reporting.
	QuoteNotional float64
}

// Sizer computes position deltas. The scaling factor applies on top of the
// reference trader's position ratio.
type Sizer struct {
	scalingFactor float64
}

func New(scalingFactor float64) *Sizer {
	return &Sizer{scalingFactor: scalingFactor}
}

// PlanTrade sizes a long/short/close intent. Long and short move the position
// toward the target computed from available balance; they never overshoot it.
// Close flattens exactly.
func (s *Sizer) PlanTrade(snap *domain.AccountSnapshot, mkt *domain.MarketInfo, tradeType domain.TradeType, refRatio, price float64) (*Plan, error) {
	if price <= 0 {
		return nil, fmt.Errorf("invalid reference price %v", price)
	}
	pos := snap.PositionFor(mkt.MarketID)

	if tradeType == domain.TradeTypeClose {
		if pos.IsFlat() {
			return nil, ErrNoPosition
		}
		delta := -pos.SignedSize()
		return &Plan{
			BaseDelta:     delta,
			IsAsk:         delta < 0,
			ReduceOnly:    true,
			QuoteNotional: math.Abs(delta) * price,
		}, nil
	}

	if refRatio <= 0 {
		return nil, fmt.Errorf("invalid position ratio %v", refRatio)
	}
	targetNotional := snap.AvailableBalance * refRatio * s.scalingFactor
	targetBase := roundDown(targetNotional/price, mkt.SizeDecimals)
	if tradeType == domain.TradeTypeShort {
		targetBase = -targetBase
	}

	var current float64
	if !pos.IsFlat() {
		current = pos.SignedSize()
	}
	delta := roundDown(targetBase-current, mkt.SizeDecimals)
	if delta == 0 {
		if current == 0 {
			return nil, ErrInsufficientBalance
		}
		return nil, ErrNothingToDo
	}

	reducing := isReducing(current, delta)
	if !reducing {
		if math.Abs(delta) < mkt.MinBaseAmount || math.Abs(delta)*price < mkt.MinQuoteAmount {
			return nil, ErrInsufficientBalance
		}
	}
	return &Plan{
		BaseDelta:     delta,
		IsAsk:         delta < 0,
		ReduceOnly:    reducing,
		QuoteNotional: math.Abs(delta) * price,
	}, nil
}

// PlanAdjust scales the current position by a percentage, keeping its sign.
// Decrease by 1.0 flattens the position.
func (s *Sizer) PlanAdjust(snap *domain.AccountSnapshot, mkt *domain.MarketInfo, adj domain.AdjustmentType, pct, price float64) (*Plan, error) {
	if price <= 0 {
		return nil, fmt.Errorf("invalid reference price %v", price)
	}
	if pct <= 0 || pct > 1 {
		return nil, fmt.Errorf("percentage %v out of range (0, 1]", pct)
	}
	pos := snap.PositionFor(mkt.MarketID)
	if pos.IsFlat() {
		return nil, ErrNoPosition
	}

	signed := pos.SignedSize()
	delta := roundDown(signed*pct, mkt.SizeDecimals)
	if adj == domain.AdjustmentDecrease {
		delta = -delta
		// A full decrease must flatten exactly, not leave rounding dust.
		if pct == 1 {
			delta = -signed
		}
	}
	if delta == 0 {
		return nil, ErrInsufficientBalance
	}

	reducing := isReducing(signed, delta)
	if !reducing {
		if math.Abs(delta) < mkt.MinBaseAmount || math.Abs(delta)*price < mkt.MinQuoteAmount {
			return nil, ErrInsufficientBalance
		}
	}
	return &Plan{
		BaseDelta:     delta,
		IsAsk:         delta < 0,
		ReduceOnly:    reducing,
		QuoteNotional: math.Abs(delta) * price,
	}, nil
}

// isReducing reports whether delta shrinks the position without crossing
// zero. A sign flip opens exposure on the other side and must not be marked
// reduce-only.
func isReducing(current, delta float64) bool {
	if current == 0 || delta == 0 {
		return false
	}
	if (current > 0) == (delta > 0) {
		return false
	}
	return math.Abs(delta) <= math.Abs(current)
}

// roundDown truncates toward zero at the market's size precision. The
// exchange representation is integral at that precision, so the sized amount
// must never round up past what the balance supports.
func roundDown(v float64, decimals int) float64 {
	d := decimal.NewFromFloat(v).Shift(int32(decimals)).Truncate(0).Shift(-int32(decimals))
	f, _ := d.Float64()
	return f
}
