package domain

// TradeType says what a mirrored trade should do to the account's position.
type TradeType string

const (
	TradeTypeLong  TradeType = "long"
	TradeTypeShort TradeType = "short"
	TradeTypeClose TradeType = "close"
)

func (t TradeType) Valid() bool {
	switch t {
	case TradeTypeLong, TradeTypeShort, TradeTypeClose:
		return true
	}
	return false
}

// AdjustmentType scales an existing position up or down without changing its sign.
type AdjustmentType string

const (
	AdjustmentIncrease AdjustmentType = "increase"
	AdjustmentDecrease AdjustmentType = "decrease"
)

func (a AdjustmentType) Valid() bool {
	return a == AdjustmentIncrease || a == AdjustmentDecrease
}

// TradeIntent is one account's share of a reference trade. The market is
// resolved from the symbol before the intent is queued.
type TradeIntent struct {
	RequestID    string
	AccountIndex int
	MarketID     int
	Symbol       string
	TradeType    TradeType

	// ReferencePositionRatio is the reference trader's position as a fraction
	// of their balance. Scaled by the service-wide scaling factor during sizing.
	ReferencePositionRatio float64
}

// AdjustIntent resizes an existing position by a percentage of its current size.
type AdjustIntent struct {
	RequestID    string
	AccountIndex int
	MarketID     int
	Symbol       string
	Adjustment   AdjustmentType

	// Percentage of the current position size, in (0, 1]. Decrease by 1.0
	// is equivalent to a close.
	Percentage float64
}
