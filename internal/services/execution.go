package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/metrics"
	"github.com/betbot/golighter/internal/ports"
	"github.com/betbot/golighter/internal/retry"
	"github.com/betbot/golighter/internal/risk"
	"github.com/betbot/golighter/internal/sizing"
)

// planFunc sizes the request against a fresh snapshot and reference price.
type planFunc func(ctx context.Context, mkt *domain.MarketInfo, snap *domain.AccountSnapshot, price float64) (*sizing.Plan, error)

// execution drives one request through the pipeline. It runs entirely inside
// the account's lane and emits exactly one terminal outcome.
type execution struct {
	service      *TradingService
	requestID    string
	accountIndex int
	marketID     int
	symbol       string
	done         bool
}

func (e *execution) run(ctx context.Context, plan planFunc) {
	s := e.service
	breaker := s.breakers[e.accountIndex]
	if err := breaker.AllowTrading(); err != nil {
		e.reject("account halted: too many consecutive failures")
		return
	}

	entry := log.WithFields(logrus.Fields{
		"request": e.requestID,
		"account": e.accountIndex,
		"market":  e.symbol,
	})

	// Sizing. Balance and position are read fresh here; nothing from the
	// submission path is reused.
	s.tracker.Transition(e.requestID, domain.StateSizing)
	mkt, err := s.resolver.Info(ctx, e.marketID)
	if err != nil {
		e.fail(breaker, "market metadata unavailable: "+err.Error())
		return
	}
	snap, err := retry.DoValue(ctx, s.retrier, "get account", func(ctx context.Context) (*domain.AccountSnapshot, error) {
		return s.gw.GetAccountSnapshot(ctx, e.accountIndex)
	})
	if err != nil {
		e.fail(breaker, "account snapshot unavailable: "+err.Error())
		return
	}
	book, err := retry.DoValue(ctx, s.retrier, "get order book", func(ctx context.Context) (*domain.BookTop, error) {
		return s.gw.GetBookTop(ctx, e.marketID)
	})
	if err != nil {
		e.fail(breaker, "order book unavailable: "+err.Error())
		return
	}

	p, err := plan(ctx, mkt, snap, book.Mid())
	if err != nil {
		switch {
		case errors.Is(err, sizing.ErrInsufficientBalance):
			e.reject("insufficient balance for market minimums")
		case errors.Is(err, sizing.ErrNoPosition):
			e.reject("no open position")
		case errors.Is(err, sizing.ErrNothingToDo):
			e.reject("position already at target")
		default:
			e.reject("sizing failed: " + err.Error())
		}
		return
	}
	entry.WithFields(logrus.Fields{
		"delta":    p.BaseDelta,
		"notional": p.QuoteNotional,
	}).Info("sized")

	// Risk check against a book fetched after sizing.
	s.tracker.Transition(e.requestID, domain.StateRiskCheck)
	book, err = retry.DoValue(ctx, s.retrier, "get order book", func(ctx context.Context) (*domain.BookTop, error) {
		return s.gw.GetBookTop(ctx, e.marketID)
	})
	if err != nil {
		e.fail(breaker, "order book unavailable: "+err.Error())
		return
	}
	if err := s.guard.Check(book, p.IsAsk); err != nil {
		e.reject("slippage check failed: " + err.Error())
		return
	}

	// Submission.
	s.tracker.Transition(e.requestID, domain.StateSubmitting)
	amount := p.BaseDelta
	if amount < 0 {
		amount = -amount
	}
	res, err := retry.DoValue(ctx, s.retrier, "place market order", func(ctx context.Context) (*domain.OrderResult, error) {
		return s.gw.PlaceMarketOrder(ctx, &ports.PlaceMarketOrderRequest{
			AccountIndex: e.accountIndex,
			Market:       mkt,
			IsAsk:        p.IsAsk,
			BaseAmount:   amount,
			LimitPrice:   s.guard.LimitPrice(book, p.IsAsk),
			ReduceOnly:   p.ReduceOnly,
		})
	})
	if err != nil {
		e.fail(breaker, "submission failed: "+err.Error())
		return
	}

	// Reconciliation sizes the stop from the position as it exists after the
	// fill, so the snapshot is fetched again.
	s.tracker.Transition(e.requestID, domain.StateReconciling)
	s.stops.Forget(e.accountIndex, e.marketID)
	var warning string
	postSnap, err := retry.DoValue(ctx, s.retrier, "get account", func(ctx context.Context) (*domain.AccountSnapshot, error) {
		return s.gw.GetAccountSnapshot(ctx, e.accountIndex)
	})
	if err != nil {
		warning = "stop loss not reconciled: " + err.Error()
	} else {
		metrics.StopLossReconciles.Add(1)
		if err := s.stops.Reconcile(ctx, e.accountIndex, mkt, postSnap); err != nil {
			warning = "stop loss not reconciled: " + err.Error()
		}
	}
	if warning != "" {
		metrics.ReconcileWarnings.Add(1)
		entry.Warn(warning)
	}

	breaker.OnSuccess()
	e.complete(&domain.ExecutionOutcome{
		RequestID:    e.requestID,
		AccountIndex: e.accountIndex,
		MarketID:     e.marketID,
		Symbol:       e.symbol,
		Result:       domain.ResultCompleted,
		Warning:      warning,
		TxHash:       res.TxHash,
		FilledBase:   res.FilledBase,
		FilledQuote:  res.FilledQuote,
		AvgFillPrice: res.AvgFillPrice,
		Reducing:     p.ReduceOnly,
		FinishedAt:   time.Now(),
	})
	metrics.TradesCompleted.Add(1)
}

func (e *execution) reject(detail string) {
	e.complete(&domain.ExecutionOutcome{
		RequestID:    e.requestID,
		AccountIndex: e.accountIndex,
		MarketID:     e.marketID,
		Symbol:       e.symbol,
		Result:       domain.ResultRejected,
		Detail:       detail,
		FinishedAt:   time.Now(),
	})
	metrics.TradesRejected.Add(1)
}

func (e *execution) fail(breaker *risk.CircuitBreaker, detail string) {
	breaker.OnError()
	e.complete(&domain.ExecutionOutcome{
		RequestID:    e.requestID,
		AccountIndex: e.accountIndex,
		MarketID:     e.marketID,
		Symbol:       e.symbol,
		Result:       domain.ResultFailed,
		Detail:       detail,
		FinishedAt:   time.Now(),
	})
	metrics.TradesFailed.Add(1)
}

// complete records and delivers the terminal outcome once.
func (e *execution) complete(outcome *domain.ExecutionOutcome) {
	if e.done {
		return
	}
	e.done = true
	if e.service.tracker.Complete(e.requestID, outcome) {
		e.service.notifier.NotifyOutcome(outcome)
	}
}
