// Package ports holds the interfaces crossed by the execution pipeline so the
// concrete packages on either side never import each other.
package ports

import (
	"context"

	"github.com/betbot/golighter/internal/domain"
)

// PlaceMarketOrderRequest submits an immediate-or-cancel order with a slippage
// bound already baked into the limit price. Market metadata rides along so the
// gateway can scale amounts to the market's tick precision.
type PlaceMarketOrderRequest struct {
	AccountIndex int
	Market       *domain.MarketInfo
	IsAsk        bool
	BaseAmount   float64
	LimitPrice   float64
	ReduceOnly   bool
}

// PlaceStopLossRequest submits a reduce-only stop order.
type PlaceStopLossRequest struct {
	AccountIndex int
	Market       *domain.MarketInfo
	IsAsk        bool
	BaseAmount   float64
	TriggerPrice float64
}

// Gateway is the only path to the exchange. Every error it returns carries a
// failure class (see domain.ExchangeError); callers never inspect transport
// details.
type Gateway interface {
	GetAccountSnapshot(ctx context.Context, accountIndex int) (*domain.AccountSnapshot, error)
	GetBookTop(ctx context.Context, marketID int) (*domain.BookTop, error)
	ListMarkets(ctx context.Context) ([]domain.MarketInfo, error)
	PlaceMarketOrder(ctx context.Context, req *PlaceMarketOrderRequest) (*domain.OrderResult, error)
	PlaceStopLossOrder(ctx context.Context, req *PlaceStopLossRequest) (*domain.OrderResult, error)
	CancelOrder(ctx context.Context, accountIndex, marketID int, orderIndex int64) error
	ListStopLossOrders(ctx context.Context, accountIndex, marketID int) ([]domain.StopLossOrder, error)
	Ping(ctx context.Context) error
}

// Notifier delivers terminal outcomes to humans. Implementations must not
// block the execution lane.
type Notifier interface {
	NotifyOutcome(outcome *domain.ExecutionOutcome)
	NotifySystem(title, message string)
}
