package gateway

// Wire types for the exchange REST API. Quantities arrive as decimal strings.

type accountResponse struct {
	Accounts []accountEntry `json:"accounts"`
}

type accountEntry struct {
	AccountIndex     int             `json:"account_index"`
	AvailableBalance string          `json:"available_balance"`
	Collateral       string          `json:"collateral"`
	TotalAssetValue  string          `json:"total_asset_value"`
	Positions        []positionEntry `json:"positions"`
}

type positionEntry struct {
	MarketID      int    `json:"market_id"`
	Symbol        string `json:"symbol"`
	Sign          int    `json:"sign"`
	Position      string `json:"position"`
	PositionValue string `json:"position_value"`
	AvgEntryPrice string `json:"avg_entry_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	RealizedPnL   string `json:"realized_pnl"`
}

type orderBookDetailsResponse struct {
	OrderBookDetails []orderBookDetail `json:"order_book_details"`
}

type orderBookDetail struct {
	MarketID       int    `json:"market_id"`
	Symbol         string `json:"symbol"`
	Status         string `json:"status"`
	PriceDecimals  int    `json:"supported_price_decimals"`
	SizeDecimals   int    `json:"supported_size_decimals"`
	MinBaseAmount  string `json:"min_base_amount"`
	MinQuoteAmount string `json:"min_quote_amount"`
}

type orderBookOrdersResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price               string `json:"price"`
	RemainingBaseAmount string `json:"remaining_base_amount"`
}

type activeOrdersResponse struct {
	Orders []orderEntry `json:"orders"`
}

type orderEntry struct {
	OrderIndex          int64  `json:"order_index"`
	MarketIndex         int    `json:"market_index"`
	IsAsk               bool   `json:"is_ask"`
	Type                string `json:"type"`
	TriggerPrice        string `json:"trigger_price"`
	RemainingBaseAmount string `json:"remaining_base_amount"`
	ReduceOnly          bool   `json:"reduce_only"`
	Status              string `json:"status"`
}

type sendTxRequest struct {
	AccountIndex int    `json:"account_index"`
	MarketIndex  int    `json:"market_index"`
	TxType       string `json:"tx_type"`
	IsAsk        bool   `json:"is_ask"`
	BaseAmount   int64  `json:"base_amount"`
	Price        int64  `json:"price"`
	TriggerPrice int64  `json:"trigger_price,omitempty"`
	OrderIndex   int64  `json:"order_index,omitempty"`
	ReduceOnly   bool   `json:"reduce_only"`
	TimeInForce  string `json:"time_in_force,omitempty"`
}

type sendTxResponse struct {
	TxHash       string `json:"tx_hash"`
	OrderIndex   int64  `json:"order_index"`
	FilledBase   string `json:"filled_base_amount"`
	FilledQuote  string `json:"filled_quote_amount"`
	AvgFillPrice string `json:"avg_fill_price"`
}

type statusResponse struct {
	Status int `json:"status"`
}
