// Package markets caches per-market metadata and resolves symbols to market
// ids. The cache is refreshed from the exchange on demand with a TTL.
package markets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/ports"
)

var log = logrus.WithField("component", "markets")

var ErrMarketNotFound = errors.New("market not found")

const defaultTTL = 5 * time.Minute

// Resolver maps symbols and market ids to MarketInfo. Only active markets are
// resolvable.
type Resolver struct {
	gw  ports.Gateway
	ttl time.Duration

	mu        sync.RWMutex
	bySymbol  map[string]*domain.MarketInfo
	byID      map[int]*domain.MarketInfo
	refreshed time.Time
}

func NewResolver(gw ports.Gateway) *Resolver {
	return &Resolver{
		gw:       gw,
		ttl:      defaultTTL,
		bySymbol: make(map[string]*domain.MarketInfo),
		byID:     make(map[int]*domain.MarketInfo),
	}
}

// Resolve returns the active market for a symbol, refreshing the cache if
// stale. Symbols are case-insensitive.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (*domain.MarketInfo, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if m := r.cached(func() *domain.MarketInfo { return r.bySymbol[key] }); m != nil {
		return m, nil
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	if m := r.cached(func() *domain.MarketInfo { return r.bySymbol[key] }); m != nil {
		return m, nil
	}
	return nil, ErrMarketNotFound
}

// Info returns metadata for a known market id.
func (r *Resolver) Info(ctx context.Context, marketID int) (*domain.MarketInfo, error) {
	if m := r.cached(func() *domain.MarketInfo { return r.byID[marketID] }); m != nil {
		return m, nil
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	if m := r.cached(func() *domain.MarketInfo { return r.byID[marketID] }); m != nil {
		return m, nil
	}
	return nil, ErrMarketNotFound
}

func (r *Resolver) cached(get func() *domain.MarketInfo) *domain.MarketInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if time.Since(r.refreshed) > r.ttl {
		return nil
	}
	return get()
}

func (r *Resolver) refresh(ctx context.Context) error {
	infos, err := r.gw.ListMarkets(ctx)
	if err != nil {
		return err
	}
	bySymbol := make(map[string]*domain.MarketInfo, len(infos))
	byID := make(map[int]*domain.MarketInfo, len(infos))
	for i := range infos {
		m := &infos[i]
		if !m.Active() {
			continue
		}
		bySymbol[strings.ToUpper(m.Symbol)] = m
		byID[m.MarketID] = m
	}

	r.mu.Lock()
	r.bySymbol = bySymbol
	r.byID = byID
	r.refreshed = time.Now()
	r.mu.Unlock()

	log.Debugf("market cache refreshed, %d active markets", len(byID))
	return nil
}
