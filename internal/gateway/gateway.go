// Package gateway is the only path to the exchange. It owns transport,
// signing and failure classification; callers see domain types and
// domain.ExchangeError only.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/ports"
	"github.com/betbot/golighter/internal/registry"
)

var log = logrus.WithField("component", "gateway")

const (
	txTypeCreateOrder    = "create_order"
	txTypeCancelOrder    = "cancel_order"
	orderTypeStopLoss    = "stop_loss"
	timeInForceImmediate = "immediate_or_cancel"
)

// Gateway implements ports.Gateway against the exchange REST API.
type Gateway struct {
	http        *httpClient
	signers     map[int]*signer
	l1Addresses map[int]string
}

var _ ports.Gateway = (*Gateway)(nil)

// New builds a gateway with a signer per managed account.
func New(baseURL string, reg *registry.Registry) (*Gateway, error) {
	g := &Gateway{
		http:        newHTTPClient(baseURL, 30*time.Second),
		signers:     make(map[int]*signer, reg.Len()),
		l1Addresses: make(map[int]string),
	}
	for _, idx := range reg.Indexes() {
		acct, err := reg.Lookup(idx)
		if err != nil {
			return nil, err
		}
		s, err := newSigner(acct.Index, acct.APIIndex, acct.PrivateKey)
		if err != nil {
			return nil, err
		}
		g.signers[idx] = s
		if acct.L1Address != "" {
			g.l1Addresses[idx] = acct.L1Address
		}
	}
	return g, nil
}

func (g *Gateway) authHeaders(accountIndex int) (map[string]string, error) {
	s, ok := g.signers[accountIndex]
	if !ok {
		return nil, fmt.Errorf("no signer for account %d", accountIndex)
	}
	token, err := s.Token()
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": token}, nil
}

// classify assigns the failure class exactly once per call. Transport errors,
// timeouts, rate limits and server errors are transient; everything else the
// exchange refused is rejected.
func classify(op string, resp *resty.Response, err error) error {
	if err != nil {
		return domain.NewTransientError(op, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	cause := apiError(resp)
	code := resp.StatusCode()
	if code == http.StatusTooManyRequests || code >= 500 {
		return domain.NewTransientError(op, cause)
	}
	return domain.NewRejectedError(op, cause)
}

func (g *Gateway) GetAccountSnapshot(ctx context.Context, accountIndex int) (*domain.AccountSnapshot, error) {
	const op = "get account"
	headers, err := g.authHeaders(accountIndex)
	if err != nil {
		return nil, domain.NewRejectedError(op, err)
	}
	params := map[string]string{
		"by":    "index",
		"value": strconv.Itoa(accountIndex),
	}
	if addr, ok := g.l1Addresses[accountIndex]; ok {
		params["by"] = "l1_address"
		params["value"] = addr
	}
	var out accountResponse
	resp, err := g.http.do(ctx, http.MethodGet, "/api/v1/account", &requestOptions{
		Headers: headers,
		Params:  params,
	}, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return nil, cerr
	}
	if len(out.Accounts) == 0 {
		return nil, domain.NewRejectedError(op, fmt.Errorf("account %d not found", accountIndex))
	}
	return toSnapshot(&out.Accounts[0]), nil
}

func (g *Gateway) GetBookTop(ctx context.Context, marketID int) (*domain.BookTop, error) {
	const op = "get order book"
	var out orderBookOrdersResponse
	resp, err := g.http.do(ctx, http.MethodGet, "/api/v1/orderBookOrders", &requestOptions{
		Params: map[string]string{
			"market_id": strconv.Itoa(marketID),
			"limit":     "1",
		},
	}, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return nil, cerr
	}
	top := &domain.BookTop{MarketID: marketID}
	if len(out.Bids) > 0 {
		top.BestBid = parseFloat(out.Bids[0].Price)
	}
	if len(out.Asks) > 0 {
		top.BestAsk = parseFloat(out.Asks[0].Price)
	}
	return top, nil
}

func (g *Gateway) ListMarkets(ctx context.Context) ([]domain.MarketInfo, error) {
	const op = "list markets"
	var out orderBookDetailsResponse
	resp, err := g.http.do(ctx, http.MethodGet, "/api/v1/orderBookDetails", nil, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return nil, cerr
	}
	infos := make([]domain.MarketInfo, 0, len(out.OrderBookDetails))
	for _, d := range out.OrderBookDetails {
		infos = append(infos, domain.MarketInfo{
			MarketID:       d.MarketID,
			Symbol:         d.Symbol,
			Status:         d.Status,
			PriceDecimals:  d.PriceDecimals,
			SizeDecimals:   d.SizeDecimals,
			MinBaseAmount:  parseFloat(d.MinBaseAmount),
			MinQuoteAmount: parseFloat(d.MinQuoteAmount),
		})
	}
	return infos, nil
}

func (g *Gateway) PlaceMarketOrder(ctx context.Context, req *ports.PlaceMarketOrderRequest) (*domain.OrderResult, error) {
	const op = "place market order"
	headers, err := g.authHeaders(req.AccountIndex)
	if err != nil {
		return nil, domain.NewRejectedError(op, err)
	}
	body := &sendTxRequest{
		AccountIndex: req.AccountIndex,
		MarketIndex:  req.Market.MarketID,
		TxType:       txTypeCreateOrder,
		IsAsk:        req.IsAsk,
		BaseAmount:   scaleAmount(req.BaseAmount, req.Market.SizeDecimals),
		Price:        scaleAmount(req.LimitPrice, req.Market.PriceDecimals),
		ReduceOnly:   req.ReduceOnly,
		TimeInForce:  timeInForceImmediate,
	}
	var out sendTxResponse
	resp, err := g.http.do(ctx, http.MethodPost, "/api/v1/sendTx", &requestOptions{Headers: headers, Body: body}, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return nil, cerr
	}
	log.WithFields(logrus.Fields{
		"account": req.AccountIndex,
		"market":  req.Market.Symbol,
		"is_ask":  req.IsAsk,
		"tx":      out.TxHash,
	}).Info("market order accepted")
	return toOrderResult(&out), nil
}

func (g *Gateway) PlaceStopLossOrder(ctx context.Context, req *ports.PlaceStopLossRequest) (*domain.OrderResult, error) {
	const op = "place stop loss"
	headers, err := g.authHeaders(req.AccountIndex)
	if err != nil {
		return nil, domain.NewRejectedError(op, err)
	}
	trigger := scaleAmount(req.TriggerPrice, req.Market.PriceDecimals)
	body := &sendTxRequest{
		AccountIndex: req.AccountIndex,
		MarketIndex:  req.Market.MarketID,
		TxType:       txTypeCreateOrder,
		IsAsk:        req.IsAsk,
		BaseAmount:   scaleAmount(req.BaseAmount, req.Market.SizeDecimals),
		Price:        trigger,
		TriggerPrice: trigger,
		ReduceOnly:   true,
	}
	var out sendTxResponse
	resp, err := g.http.do(ctx, http.MethodPost, "/api/v1/sendTx", &requestOptions{Headers: headers, Body: body}, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return nil, cerr
	}
	log.WithFields(logrus.Fields{
		"account": req.AccountIndex,
		"market":  req.Market.Symbol,
		"trigger": req.TriggerPrice,
	}).Info("stop loss placed")
	return toOrderResult(&out), nil
}

func (g *Gateway) CancelOrder(ctx context.Context, accountIndex, marketID int, orderIndex int64) error {
	const op = "cancel order"
	headers, err := g.authHeaders(accountIndex)
	if err != nil {
		return domain.NewRejectedError(op, err)
	}
	body := &sendTxRequest{
		AccountIndex: accountIndex,
		MarketIndex:  marketID,
		TxType:       txTypeCancelOrder,
		OrderIndex:   orderIndex,
	}
	resp, err := g.http.do(ctx, http.MethodPost, "/api/v1/sendTx", &requestOptions{Headers: headers, Body: body}, nil)
	return classify(op, resp, err)
}

func (g *Gateway) ListStopLossOrders(ctx context.Context, accountIndex, marketID int) ([]domain.StopLossOrder, error) {
	const op = "list stop orders"
	headers, err := g.authHeaders(accountIndex)
	if err != nil {
		return nil, domain.NewRejectedError(op, err)
	}
	var out activeOrdersResponse
	resp, err := g.http.do(ctx, http.MethodGet, "/api/v1/accountActiveOrders", &requestOptions{
		Headers: headers,
		Params: map[string]string{
			"account_index": strconv.Itoa(accountIndex),
			"market_id":     strconv.Itoa(marketID),
		},
	}, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return nil, cerr
	}
	orders := make([]domain.StopLossOrder, 0, len(out.Orders))
	for _, o := range out.Orders {
		if o.Type != orderTypeStopLoss {
			continue
		}
		orders = append(orders, domain.StopLossOrder{
			OrderIndex:   o.OrderIndex,
			MarketID:     o.MarketIndex,
			IsAsk:        o.IsAsk,
			TriggerPrice: parseFloat(o.TriggerPrice),
			BaseAmount:   parseFloat(o.RemainingBaseAmount),
			ReduceOnly:   o.ReduceOnly,
			Status:       o.Status,
		})
	}
	return orders, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	const op = "status"
	var out statusResponse
	resp, err := g.http.do(ctx, http.MethodGet, "/api/v1/status", nil, &out)
	if cerr := classify(op, resp, err); cerr != nil {
		return cerr
	}
	if out.Status != 1 {
		return domain.NewTransientError(op, fmt.Errorf("exchange status %d", out.Status))
	}
	return nil
}

func toSnapshot(a *accountEntry) *domain.AccountSnapshot {
	snap := &domain.AccountSnapshot{
		AccountIndex:     a.AccountIndex,
		AvailableBalance: parseFloat(a.AvailableBalance),
		Collateral:       parseFloat(a.Collateral),
		TotalAssetValue:  parseFloat(a.TotalAssetValue),
	}
	for _, p := range a.Positions {
		size := parseFloat(p.Position)
		if size == 0 {
			continue
		}
		sign := p.Sign
		if sign == 0 {
			sign = 1
		}
		snap.Positions = append(snap.Positions, domain.Position{
			MarketID:      p.MarketID,
			Symbol:        p.Symbol,
			Sign:          sign,
			Size:          size,
			PositionValue: parseFloat(p.PositionValue),
			AvgEntryPrice: parseFloat(p.AvgEntryPrice),
			UnrealizedPnL: parseFloat(p.UnrealizedPnL),
			RealizedPnL:   parseFloat(p.RealizedPnL),
		})
	}
	return snap
}

func toOrderResult(r *sendTxResponse) *domain.OrderResult {
	return &domain.OrderResult{
		TxHash:       r.TxHash,
		OrderIndex:   r.OrderIndex,
		FilledBase:   parseFloat(r.FilledBase),
		FilledQuote:  parseFloat(r.FilledQuote),
		AvgFillPrice: parseFloat(r.AvgFillPrice),
	}
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
