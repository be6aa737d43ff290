package domain

// Position is one open position as reported by the exchange. Size is the
// unsigned magnitude; Sign carries the direction so math on signed exposure
// stays explicit.
type Position struct {
	MarketID      int
	Symbol        string
	Sign          int // +1 long, -1 short
	Size          float64
	PositionValue float64
	AvgEntryPrice float64
	UnrealizedPnL float64
	RealizedPnL   float64
}

// SignedSize is positive for longs and negative for shorts.
func (p *Position) SignedSize() float64 {
	if p.Sign < 0 {
		return -p.Size
	}
	return p.Size
}

func (p *Position) IsFlat() bool {
	return p == nil || p.Size == 0
}

// AccountSnapshot is a point-in-time read of one account. Snapshots are never
// cached across pipeline stages; every stage that needs balances or positions
// fetches its own.
type AccountSnapshot struct {
	AccountIndex     int
	AvailableBalance float64
	Collateral       float64
	TotalAssetValue  float64
	Positions        []Position
}

// PositionFor returns the open position in the given market, or nil.
func (s *AccountSnapshot) PositionFor(marketID int) *Position {
	for i := range s.Positions {
		if s.Positions[i].MarketID == marketID && s.Positions[i].Size != 0 {
			return &s.Positions[i]
		}
	}
	return nil
}
