package sizing

import (
	"errors"
	"math"
	"testing"
	"testing/quick"

	"github.com/betbot/golighter/internal/domain"
)

func testMarket() *domain.MarketInfo {
	return &domain.MarketInfo{
		MarketID:       1,
		Symbol:         "BTC",
		Status:         "active",
		PriceDecimals:  2,
		SizeDecimals:   4,
		MinBaseAmount:  0.0001,
		MinQuoteAmount: 10,
	}
}

func snapshotWith(balance float64, positions ...domain.Position) *domain.AccountSnapshot {
	return &domain.AccountSnapshot{
		AccountIndex:     3,
		AvailableBalance: balance,
		Positions:        positions,
	}
}

func TestPlanTradeLong(t *testing.T) {
	s := New(0.8)
	mkt := testMarket()

	t.Run("opens toward target", func(t *testing.T) {
		// 100 * 0.5 * 0.8 = 40 quote, at price 2.0 -> 20 base
		plan, err := s.PlanTrade(snapshotWith(100), mkt, domain.TradeTypeLong, 0.5, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != 20 {
			t.Fatalf("delta = %v, want 20", plan.BaseDelta)
		}
		if plan.IsAsk {
			t.Fatal("long open should be a buy")
		}
		if plan.ReduceOnly {
			t.Fatal("opening order must not be reduce-only")
		}
		if math.Abs(plan.QuoteNotional-40) > 1e-9 {
			t.Fatalf("notional = %v, want 40", plan.QuoteNotional)
		}
	})

	t.Run("tops up an existing long", func(t *testing.T) {
		pos := domain.Position{MarketID: 1, Sign: 1, Size: 5, AvgEntryPrice: 2.0}
		plan, err := s.PlanTrade(snapshotWith(100, pos), mkt, domain.TradeTypeLong, 0.5, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != 15 {
			t.Fatalf("delta = %v, want 15", plan.BaseDelta)
		}
	})

	t.Run("reduces when already past target", func(t *testing.T) {
		pos := domain.Position{MarketID: 1, Sign: 1, Size: 50, AvgEntryPrice: 2.0}
		plan, err := s.PlanTrade(snapshotWith(100, pos), mkt, domain.TradeTypeLong, 0.5, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != -30 {
			t.Fatalf("delta = %v, want -30", plan.BaseDelta)
		}
		if !plan.ReduceOnly {
			t.Fatal("shrinking toward target should be reduce-only")
		}
	})

	t.Run("exactly at target", func(t *testing.T) {
		pos := domain.Position{MarketID: 1, Sign: 1, Size: 20, AvgEntryPrice: 2.0}
		_, err := s.PlanTrade(snapshotWith(100, pos), mkt, domain.TradeTypeLong, 0.5, 2.0)
		if !errors.Is(err, ErrNothingToDo) {
			t.Fatalf("err = %v, want ErrNothingToDo", err)
		}
	})

	t.Run("flip from short is not reduce-only", func(t *testing.T) {
		pos := domain.Position{MarketID: 1, Sign: -1, Size: 50, AvgEntryPrice: 2.0}
		plan, err := s.PlanTrade(snapshotWith(100, pos), mkt, domain.TradeTypeLong, 0.5, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != 70 {
			t.Fatalf("delta = %v, want 70", plan.BaseDelta)
		}
		if plan.ReduceOnly {
			t.Fatal("crossing zero must not be reduce-only")
		}
	})

	t.Run("below market minimums", func(t *testing.T) {
		_, err := s.PlanTrade(snapshotWith(1), mkt, domain.TradeTypeLong, 0.01, 2.0)
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})
}

func TestPlanTradeShort(t *testing.T) {
	s := New(1.0)
	mkt := testMarket()

	plan, err := s.PlanTrade(snapshotWith(100), mkt, domain.TradeTypeShort, 0.5, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.BaseDelta != -25 {
		t.Fatalf("delta = %v, want -25", plan.BaseDelta)
	}
	if !plan.IsAsk {
		t.Fatal("short open should be a sell")
	}
}

func TestPlanTradeClose(t *testing.T) {
	s := New(1.0)
	mkt := testMarket()

	t.Run("flattens a long exactly", func(t *testing.T) {
		pos := domain.Position{MarketID: 1, Sign: 1, Size: 80, AvgEntryPrice: 2.0}
		plan, err := s.PlanTrade(snapshotWith(100, pos), mkt, domain.TradeTypeClose, 0, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != -80 {
			t.Fatalf("delta = %v, want -80", plan.BaseDelta)
		}
		if !plan.IsAsk || !plan.ReduceOnly {
			t.Fatalf("close long should be a reduce-only sell, got isAsk=%v reduceOnly=%v", plan.IsAsk, plan.ReduceOnly)
		}
	})

	t.Run("flattens a short exactly", func(t *testing.T) {
		pos := domain.Position{MarketID: 1, Sign: -1, Size: 12.5, AvgEntryPrice: 2.0}
		plan, err := s.PlanTrade(snapshotWith(100, pos), mkt, domain.TradeTypeClose, 0, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != 12.5 {
			t.Fatalf("delta = %v, want 12.5", plan.BaseDelta)
		}
		if plan.IsAsk {
			t.Fatal("close short should be a buy")
		}
	})

	t.Run("no position", func(t *testing.T) {
		_, err := s.PlanTrade(snapshotWith(100), mkt, domain.TradeTypeClose, 0, 2.0)
		if !errors.Is(err, ErrNoPosition) {
			t.Fatalf("err = %v, want ErrNoPosition", err)
		}
	})
}

func TestPlanAdjust(t *testing.T) {
	s := New(1.0)
	mkt := testMarket()
	pos := domain.Position{MarketID: 1, Sign: 1, Size: 40, AvgEntryPrice: 2.0}

	t.Run("decrease half", func(t *testing.T) {
		plan, err := s.PlanAdjust(snapshotWith(100, pos), mkt, domain.AdjustmentDecrease, 0.5, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != -20 {
			t.Fatalf("delta = %v, want -20", plan.BaseDelta)
		}
		if !plan.ReduceOnly {
			t.Fatal("decrease should be reduce-only")
		}
	})

	t.Run("full decrease flattens without dust", func(t *testing.T) {
		odd := domain.Position{MarketID: 1, Sign: 1, Size: 0.0003, AvgEntryPrice: 2.0}
		plan, err := s.PlanAdjust(snapshotWith(100, odd), mkt, domain.AdjustmentDecrease, 1.0, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != -0.0003 {
			t.Fatalf("delta = %v, want -0.0003", plan.BaseDelta)
		}
	})

	t.Run("increase half", func(t *testing.T) {
		plan, err := s.PlanAdjust(snapshotWith(100, pos), mkt, domain.AdjustmentIncrease, 0.5, 2.0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.BaseDelta != 20 {
			t.Fatalf("delta = %v, want 20", plan.BaseDelta)
		}
		if plan.ReduceOnly {
			t.Fatal("increase must not be reduce-only")
		}
	})

	t.Run("flat position", func(t *testing.T) {
		_, err := s.PlanAdjust(snapshotWith(100), mkt, domain.AdjustmentIncrease, 0.5, 2.0)
		if !errors.Is(err, ErrNoPosition) {
			t.Fatalf("err = %v, want ErrNoPosition", err)
		}
	})

	t.Run("percentage out of range", func(t *testing.T) {
		if _, err := s.PlanAdjust(snapshotWith(100, pos), mkt, domain.AdjustmentDecrease, 1.5, 2.0); err == nil {
			t.Fatal("expected error for percentage > 1")
		}
	})
}

// Sizing never overshoots: applying the delta lands at or inside the target,
// regardless of balance, ratio and starting position.
func TestPlanTradeNeverOvershoots(t *testing.T) {
	s := New(1.0)
	mkt := testMarket()

	property := func(balanceRaw, currentRaw uint16, ratioRaw uint8) bool {
		balance := float64(balanceRaw%10000) + 100
		current := float64(int(currentRaw)%2000 - 1000)
		ratio := (float64(ratioRaw%100) + 1) / 100
		price := 2.0

		var positions []domain.Position
		if current != 0 {
			sign := 1
			if current < 0 {
				sign = -1
			}
			positions = append(positions, domain.Position{
				MarketID: 1, Sign: sign, Size: math.Abs(current), AvgEntryPrice: price,
			})
		}

		plan, err := s.PlanTrade(snapshotWith(balance, positions...), mkt, domain.TradeTypeLong, ratio, price)
		if err != nil {
			return errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrNothingToDo)
		}
		target := balance * ratio / price
		final := current + plan.BaseDelta
		return final <= target+mkt.LotSize() && final >= math.Min(current, 0)-mkt.LotSize()
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatal(err)
	}
}
