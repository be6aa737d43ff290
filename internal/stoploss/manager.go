// Package stoploss keeps exactly one reduce-only stop order per open position.
package stoploss

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/metrics"
	"github.com/betbot/golighter/internal/ports"
	"github.com/betbot/golighter/internal/retry"
)

var log = logrus.WithField("component", "stoploss")

// Manager reconciles the exchange's stop orders against the desired state
// derived from the current position. Reconcile is idempotent: an unchanged
// position after a previous successful pass is a no-op with no exchange calls.
type Manager struct {
	gw      ports.Gateway
	retrier *retry.Retrier
	ratio   float64

	mu      sync.Mutex
	applied map[string]desiredStop // last successfully reconciled state
}

// desiredStop is the stop order a position should have.
type desiredStop struct {
	flat         bool
	isAsk        bool
	baseAmount   float64
	triggerPrice float64
}

func NewManager(gw ports.Gateway, retrier *retry.Retrier, stopLossRatio float64) *Manager {
	return &Manager{
		gw:      gw,
		retrier: retrier,
		ratio:   stopLossRatio,
		applied: make(map[string]desiredStop),
	}
}

func key(accountIndex, marketID int) string {
	return fmt.Sprintf("%d/%d", accountIndex, marketID)
}

// desired derives the stop a position should carry. Long positions stop below
// entry with a sell; shorts stop above entry with a buy.
func (m *Manager) desired(pos *domain.Position) desiredStop {
	if pos.IsFlat() {
		return desiredStop{flat: true}
	}
	var trigger float64
	if pos.Sign > 0 {
		trigger = pos.AvgEntryPrice * (1 - m.ratio)
	} else {
		trigger = pos.AvgEntryPrice * (1 + m.ratio)
	}
	return desiredStop{
		isAsk:        pos.Sign > 0,
		baseAmount:   pos.Size,
		triggerPrice: trigger,
	}
}

// matches compares an open order against the desired stop within one lot and
// one tick of tolerance.
func matches(o *domain.StopLossOrder, want desiredStop, mkt *domain.MarketInfo) bool {
	return o.ReduceOnly &&
		o.IsAsk == want.isAsk &&
		math.Abs(o.BaseAmount-want.baseAmount) < mkt.LotSize() &&
		math.Abs(o.TriggerPrice-want.triggerPrice) < mkt.TickSize()
}

// Reconcile brings the account's stop orders for one market in line with the
// position in snap. Cancel-then-place is not atomic; a failure after the
// cancel leaves the position unprotected, which the caller surfaces as a
// warning rather than a failed execution.
func (m *Manager) Reconcile(ctx context.Context, accountIndex int, mkt *domain.MarketInfo, snap *domain.AccountSnapshot) error {
	pos := snap.PositionFor(mkt.MarketID)
	want := m.desired(pos)

	k := key(accountIndex, mkt.MarketID)
	m.mu.Lock()
	prev, ok := m.applied[k]
	m.mu.Unlock()
	if ok && prev == want {
		return nil
	}

	orders, err := retry.DoValue(ctx, m.retrier, "list stop orders", func(ctx context.Context) ([]domain.StopLossOrder, error) {
		return m.gw.ListStopLossOrders(ctx, accountIndex, mkt.MarketID)
	})
	if err != nil {
		return err
	}

	if want.flat {
		if err := m.cancelAll(ctx, accountIndex, mkt.MarketID, orders); err != nil {
			return err
		}
		m.remember(k, want)
		return nil
	}

	keep := int64(-1)
	var stale []domain.StopLossOrder
	for i := range orders {
		o := &orders[i]
		if keep < 0 && matches(o, want, mkt) {
			keep = o.OrderIndex
			continue
		}
		stale = append(stale, *o)
	}

	if err := m.cancelAll(ctx, accountIndex, mkt.MarketID, stale); err != nil {
		return err
	}
	if keep >= 0 {
		m.remember(k, want)
		return nil
	}

	_, err = retry.DoValue(ctx, m.retrier, "place stop loss", func(ctx context.Context) (*domain.OrderResult, error) {
		return m.gw.PlaceStopLossOrder(ctx, &ports.PlaceStopLossRequest{
			AccountIndex: accountIndex,
			Market:       mkt,
			IsAsk:        want.isAsk,
			BaseAmount:   want.baseAmount,
			TriggerPrice: want.triggerPrice,
		})
	})
	if err != nil {
		return fmt.Errorf("position unprotected after cancel: %w", err)
	}
	metrics.StopLossRepairs.Add(1)

	log.WithFields(logrus.Fields{
		"account": accountIndex,
		"market":  mkt.Symbol,
		"trigger": want.triggerPrice,
		"size":    want.baseAmount,
	}).Info("stop loss reconciled")
	m.remember(k, want)
	return nil
}

// Forget drops the memo for an account/market so the next Reconcile hits the
// exchange again. Used after a fill changes the position out of band.
func (m *Manager) Forget(accountIndex, marketID int) {
	m.mu.Lock()
	delete(m.applied, key(accountIndex, marketID))
	m.mu.Unlock()
}

func (m *Manager) remember(k string, want desiredStop) {
	m.mu.Lock()
	m.applied[k] = want
	m.mu.Unlock()
}

func (m *Manager) cancelAll(ctx context.Context, accountIndex, marketID int, orders []domain.StopLossOrder) error {
	for _, o := range orders {
		orderIndex := o.OrderIndex
		err := m.retrier.Do(ctx, "cancel stop order", func(ctx context.Context) error {
			return m.gw.CancelOrder(ctx, accountIndex, marketID, orderIndex)
		})
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"account": accountIndex,
			"market":  marketID,
			"order":   orderIndex,
		}).Info("stale stop canceled")
	}
	return nil
}
