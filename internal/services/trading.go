// Package services contains the trade orchestrator: it accepts intents,
// queues them per account and drives each one through sizing, risk check,
// submission and stop-loss reconciliation.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/dispatch"
	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/markets"
	"github.com/betbot/golighter/internal/metrics"
	"github.com/betbot/golighter/internal/ports"
	"github.com/betbot/golighter/internal/registry"
	"github.com/betbot/golighter/internal/retry"
	"github.com/betbot/golighter/internal/risk"
	"github.com/betbot/golighter/internal/sizing"
	"github.com/betbot/golighter/internal/stoploss"
)

var log = logrus.WithField("component", "trading")

var (
	ErrUnknownAccount = errors.New("unknown account index")
	ErrInvalidIntent  = errors.New("invalid intent")
)

// maxConsecutiveErrors halts an account's breaker after this many failed
// executions in a row.
const maxConsecutiveErrors = 5

// TradingService fans a reference trade out across managed accounts. Each
// account's requests run strictly in order; accounts run independently.
type TradingService struct {
	registry   *registry.Registry
	resolver   *markets.Resolver
	gw         ports.Gateway
	retrier    *retry.Retrier
	sizer      *sizing.Sizer
	guard      *risk.SlippageGuard
	stops      *stoploss.Manager
	dispatcher *dispatch.Dispatcher
	tracker    *dispatch.Tracker
	notifier   ports.Notifier
	breakers   map[int]*risk.CircuitBreaker
}

func NewTradingService(
	reg *registry.Registry,
	resolver *markets.Resolver,
	gw ports.Gateway,
	retrier *retry.Retrier,
	sizer *sizing.Sizer,
	guard *risk.SlippageGuard,
	stops *stoploss.Manager,
	dispatcher *dispatch.Dispatcher,
	tracker *dispatch.Tracker,
	notifier ports.Notifier,
) *TradingService {
	s := &TradingService{
		registry:   reg,
		resolver:   resolver,
		gw:         gw,
		retrier:    retrier,
		sizer:      sizer,
		guard:      guard,
		stops:      stops,
		dispatcher: dispatcher,
		tracker:    tracker,
		notifier:   notifier,
		breakers:   make(map[int]*risk.CircuitBreaker),
	}
	for _, idx := range reg.Indexes() {
		s.breakers[idx] = risk.NewCircuitBreaker(maxConsecutiveErrors)
	}
	dispatcher.SetPanicHandler(s.onPanic)
	return s
}

// SubmitTrade validates the intent, resolves its market and queues it on the
// account's lane. Returns the request id on acceptance.
func (s *TradingService) SubmitTrade(ctx context.Context, intent *domain.TradeIntent) (string, error) {
	if !intent.TradeType.Valid() {
		return "", fmt.Errorf("%w: trade type %q", ErrInvalidIntent, intent.TradeType)
	}
	if intent.TradeType != domain.TradeTypeClose && (intent.ReferencePositionRatio <= 0 || intent.ReferencePositionRatio > 1) {
		return "", fmt.Errorf("%w: position ratio %v out of range (0, 1]", ErrInvalidIntent, intent.ReferencePositionRatio)
	}
	if !s.registry.Has(intent.AccountIndex) {
		return "", fmt.Errorf("%w: %d", ErrUnknownAccount, intent.AccountIndex)
	}
	mkt, err := s.resolveMarket(ctx, intent.MarketID, intent.Symbol)
	if err != nil {
		return "", err
	}
	intent.MarketID = mkt.MarketID
	intent.Symbol = mkt.Symbol
	if intent.RequestID == "" {
		intent.RequestID = uuid.NewString()
	}

	in := *intent
	err = s.dispatcher.Submit(in.AccountIndex, in.RequestID, func(ctx context.Context) {
		s.executeTrade(ctx, &in)
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrDuplicateRequest) {
			metrics.RequestsDuplicate.Add(1)
		} else if errors.Is(err, dispatch.ErrBackpressure) {
			metrics.RequestsBackpressure.Add(1)
		}
		return "", err
	}
	metrics.RequestsAccepted.Add(1)
	return in.RequestID, nil
}

// SubmitAdjustment queues a position resize for one account.
func (s *TradingService) SubmitAdjustment(ctx context.Context, intent *domain.AdjustIntent) (string, error) {
	if !intent.Adjustment.Valid() {
		return "", fmt.Errorf("%w: adjustment type %q", ErrInvalidIntent, intent.Adjustment)
	}
	if intent.Percentage <= 0 || intent.Percentage > 1 {
		return "", fmt.Errorf("%w: percentage %v out of range (0, 1]", ErrInvalidIntent, intent.Percentage)
	}
	if !s.registry.Has(intent.AccountIndex) {
		return "", fmt.Errorf("%w: %d", ErrUnknownAccount, intent.AccountIndex)
	}
	mkt, err := s.resolveMarket(ctx, intent.MarketID, intent.Symbol)
	if err != nil {
		return "", err
	}
	intent.MarketID = mkt.MarketID
	intent.Symbol = mkt.Symbol
	if intent.RequestID == "" {
		intent.RequestID = uuid.NewString()
	}

	in := *intent
	err = s.dispatcher.Submit(in.AccountIndex, in.RequestID, func(ctx context.Context) {
		s.executeAdjust(ctx, &in)
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrDuplicateRequest) {
			metrics.RequestsDuplicate.Add(1)
		} else if errors.Is(err, dispatch.ErrBackpressure) {
			metrics.RequestsBackpressure.Add(1)
		}
		return "", err
	}
	metrics.RequestsAccepted.Add(1)
	return in.RequestID, nil
}

// resolveMarket accepts either addressing form: a symbol when one is given,
// otherwise the market id directly.
func (s *TradingService) resolveMarket(ctx context.Context, marketID int, symbol string) (*domain.MarketInfo, error) {
	if strings.TrimSpace(symbol) != "" {
		mkt, err := s.resolver.Resolve(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("%w: symbol %q: %v", ErrInvalidIntent, symbol, err)
		}
		return mkt, nil
	}
	mkt, err := s.resolver.Info(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("%w: market id %d: %v", ErrInvalidIntent, marketID, err)
	}
	return mkt, nil
}

// ResumeAccount re-enables a halted account's circuit breaker.
func (s *TradingService) ResumeAccount(accountIndex int) error {
	breaker, ok := s.breakers[accountIndex]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAccount, accountIndex)
	}
	breaker.Resume()
	log.WithField("account", accountIndex).Info("account resumed")
	return nil
}

// CancelRequest removes a still-queued request.
func (s *TradingService) CancelRequest(requestID string) error {
	if err := s.dispatcher.Cancel(requestID); err != nil {
		return err
	}
	metrics.RequestsCanceled.Add(1)
	return nil
}

// RequestStatus returns the tracked record for a request id.
func (s *TradingService) RequestStatus(requestID string) (*dispatch.RequestRecord, error) {
	return s.tracker.Get(requestID)
}

// executeTrade runs one trade intent to a terminal outcome inside its lane.
func (s *TradingService) executeTrade(ctx context.Context, intent *domain.TradeIntent) {
	req := &execution{
		service:      s,
		requestID:    intent.RequestID,
		accountIndex: intent.AccountIndex,
		marketID:     intent.MarketID,
		symbol:       intent.Symbol,
	}
	req.run(ctx, func(ctx context.Context, mkt *domain.MarketInfo, snap *domain.AccountSnapshot, price float64) (*sizing.Plan, error) {
		return s.sizer.PlanTrade(snap, mkt, intent.TradeType, intent.ReferencePositionRatio, price)
	})
}

// executeAdjust resolves the adjustment into a signed delta against the
// position read inside the lane, then follows the same path as a trade.
func (s *TradingService) executeAdjust(ctx context.Context, intent *domain.AdjustIntent) {
	req := &execution{
		service:      s,
		requestID:    intent.RequestID,
		accountIndex: intent.AccountIndex,
		marketID:     intent.MarketID,
		symbol:       intent.Symbol,
	}
	req.run(ctx, func(ctx context.Context, mkt *domain.MarketInfo, snap *domain.AccountSnapshot, price float64) (*sizing.Plan, error) {
		return s.sizer.PlanAdjust(snap, mkt, intent.Adjustment, intent.Percentage, price)
	})
}

// onPanic emits the terminal outcome for a task that died before reporting.
func (s *TradingService) onPanic(requestID string, recovered any) {
	outcome := &domain.ExecutionOutcome{
		RequestID:  requestID,
		Result:     domain.ResultFailed,
		Detail:     fmt.Sprintf("internal error: %v", recovered),
		FinishedAt: time.Now(),
	}
	if s.tracker.Complete(requestID, outcome) {
		metrics.TradesFailed.Add(1)
		s.notifier.NotifyOutcome(outcome)
	}
}
