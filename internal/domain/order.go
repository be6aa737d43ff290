package domain

// StopLossOrder is an open conditional order on the exchange. The service only
// ever places reduce-only stops, but listings may surface anything.
type StopLossOrder struct {
	OrderIndex   int64
	MarketID     int
	Symbol       string
	IsAsk        bool
	TriggerPrice float64
	BaseAmount   float64
	ReduceOnly   bool
	Status       string
}

// OrderResult is the exchange's acknowledgement of a submitted order.
type OrderResult struct {
	TxHash       string
	OrderIndex   int64
	FilledBase   float64
	FilledQuote  float64
	AvgFillPrice float64
}
