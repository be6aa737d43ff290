package domain

// RequestState is one step of the execution lifecycle. Transitions only move
// forward; Rejected, Failed, Canceled and Completed are terminal.
type RequestState string

const (
	StateReceived    RequestState = "received"
	StateQueued      RequestState = "queued"
	StateSizing      RequestState = "sizing"
	StateRiskCheck   RequestState = "risk_check"
	StateSubmitting  RequestState = "submitting"
	StateReconciling RequestState = "reconciling"
	StateCompleted   RequestState = "completed"
	StateRejected    RequestState = "rejected"
	StateFailed      RequestState = "failed"
	StateCanceled    RequestState = "canceled"
)

func (s RequestState) Terminal() bool {
	switch s {
	case StateCompleted, StateRejected, StateFailed, StateCanceled:
		return true
	}
	return false
}
