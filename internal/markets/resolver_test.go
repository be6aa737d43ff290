package markets

import (
	"context"
	"errors"
	"testing"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/ports"
)

type mockGateway struct {
	markets   []domain.MarketInfo
	listCalls int
	listErr   error
}

func (m *mockGateway) ListMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.markets, nil
}

func (m *mockGateway) GetAccountSnapshot(ctx context.Context, accountIndex int) (*domain.AccountSnapshot, error) {
	panic("not used")
}
func (m *mockGateway) GetBookTop(ctx context.Context, marketID int) (*domain.BookTop, error) {
	panic("not used")
}
func (m *mockGateway) PlaceMarketOrder(ctx context.Context, req *ports.PlaceMarketOrderRequest) (*domain.OrderResult, error) {
	panic("not used")
}
func (m *mockGateway) PlaceStopLossOrder(ctx context.Context, req *ports.PlaceStopLossRequest) (*domain.OrderResult, error) {
	panic("not used")
}
func (m *mockGateway) CancelOrder(ctx context.Context, accountIndex, marketID int, orderIndex int64) error {
	panic("not used")
}
func (m *mockGateway) ListStopLossOrders(ctx context.Context, accountIndex, marketID int) ([]domain.StopLossOrder, error) {
	panic("not used")
}
func (m *mockGateway) Ping(ctx context.Context) error { return nil }

func testGateway() *mockGateway {
	return &mockGateway{
		markets: []domain.MarketInfo{
			{MarketID: 0, Symbol: "ETH", Status: "active", PriceDecimals: 2, SizeDecimals: 3},
			{MarketID: 1, Symbol: "BTC", Status: "active", PriceDecimals: 1, SizeDecimals: 5},
			{MarketID: 2, Symbol: "OLD", Status: "inactive"},
		},
	}
}

func TestResolve(t *testing.T) {
	gw := testGateway()
	r := NewResolver(gw)
	ctx := context.Background()

	t.Run("by symbol", func(t *testing.T) {
		m, err := r.Resolve(ctx, "BTC")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if m.MarketID != 1 {
			t.Fatalf("market id = %d, want 1", m.MarketID)
		}
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		m, err := r.Resolve(ctx, "  eth ")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if m.MarketID != 0 {
			t.Fatalf("market id = %d, want 0", m.MarketID)
		}
	})

	t.Run("inactive markets are not resolvable", func(t *testing.T) {
		if _, err := r.Resolve(ctx, "OLD"); !errors.Is(err, ErrMarketNotFound) {
			t.Fatalf("err = %v, want ErrMarketNotFound", err)
		}
	})

	t.Run("unknown symbol", func(t *testing.T) {
		if _, err := r.Resolve(ctx, "NOPE"); !errors.Is(err, ErrMarketNotFound) {
			t.Fatalf("err = %v, want ErrMarketNotFound", err)
		}
	})
}

func TestResolverCaches(t *testing.T) {
	gw := testGateway()
	r := NewResolver(gw)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "BTC"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := r.Resolve(ctx, "ETH"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := r.Info(ctx, 1); err != nil {
		t.Fatalf("info: %v", err)
	}
	if gw.listCalls != 1 {
		t.Fatalf("listCalls = %d, want 1 within TTL", gw.listCalls)
	}
}

func TestResolverExpiresTTL(t *testing.T) {
	gw := testGateway()
	r := NewResolver(gw)
	r.ttl = 0
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "BTC"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := r.Resolve(ctx, "BTC"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if gw.listCalls != 2 {
		t.Fatalf("listCalls = %d, want refresh after expiry", gw.listCalls)
	}
}

func TestResolverPropagatesGatewayError(t *testing.T) {
	gw := testGateway()
	gw.listErr = domain.NewTransientError("list markets", errors.New("timeout"))
	r := NewResolver(gw)

	if _, err := r.Resolve(context.Background(), "BTC"); err == nil {
		t.Fatal("expected gateway error")
	}
}
