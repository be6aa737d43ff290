package domain

import "time"

// Result classifies how an execution request ended.
type Result string

const (
	ResultCompleted Result = "completed"
	ResultRejected  Result = "rejected"
	ResultFailed    Result = "failed"
	ResultCanceled  Result = "canceled"
)

// ExecutionOutcome is the single terminal record of one request. Exactly one
// outcome is produced per accepted request.
type ExecutionOutcome struct {
	RequestID    string    `json:"request_id"`
	AccountIndex int       `json:"account_index"`
	MarketID     int       `json:"market_id"`
	Symbol       string    `json:"symbol"`
	Result       Result    `json:"result"`
	Detail       string    `json:"detail,omitempty"`
	Warning      string    `json:"warning,omitempty"`
	TxHash       string    `json:"tx_hash,omitempty"`
	FilledBase   float64   `json:"filled_base,omitempty"`
	FilledQuote  float64   `json:"filled_quote,omitempty"`
	AvgFillPrice float64   `json:"avg_fill_price,omitempty"`
	Reducing     bool      `json:"reducing,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}
