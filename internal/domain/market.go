package domain

import "math"

// MarketInfo is static per-market metadata: identity, tick precision and the
// exchange's minimum order constraints.
type MarketInfo struct {
	MarketID       int
	Symbol         string
	Status         string
	PriceDecimals  int
	SizeDecimals   int
	MinBaseAmount  float64
	MinQuoteAmount float64
}

func (m *MarketInfo) Active() bool {
	return m.Status == "active"
}

// LotSize is the smallest representable base amount for this market.
func (m *MarketInfo) LotSize() float64 {
	return math.Pow(10, -float64(m.SizeDecimals))
}

// TickSize is the smallest representable price increment for this market.
func (m *MarketInfo) TickSize() float64 {
	return math.Pow(10, -float64(m.PriceDecimals))
}

// BookTop is the top of an order book at a point in time.
type BookTop struct {
	MarketID int
	BestBid  float64
	BestAsk  float64
}

// Mid is the reference price for slippage checks.
func (b *BookTop) Mid() float64 {
	return (b.BestBid + b.BestAsk) / 2
}
