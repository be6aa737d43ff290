package metrics

import "expvar"

var (
	RequestsAccepted     = expvar.NewInt("requests_accepted")
	RequestsDuplicate    = expvar.NewInt("requests_duplicate")
	RequestsBackpressure = expvar.NewInt("requests_backpressure")
	RequestsCanceled     = expvar.NewInt("requests_canceled")

	TradesCompleted = expvar.NewInt("trades_completed")
	TradesRejected  = expvar.NewInt("trades_rejected")
	TradesFailed    = expvar.NewInt("trades_failed")

	RetryAttempts      = expvar.NewInt("retry_attempts")
	StopLossReconciles = expvar.NewInt("stoploss_reconciles")
	StopLossRepairs    = expvar.NewInt("stoploss_repairs")
	ReconcileWarnings  = expvar.NewInt("reconcile_warnings")
)
