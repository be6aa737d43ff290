package domain

import (
	"errors"
	"fmt"
)

// FailureClass is decided once per exchange call and never re-litigated by
// callers: a transient failure may be retried, a rejected one may not.
type FailureClass string

const (
	FailureTransient FailureClass = "transient"
	FailureRejected  FailureClass = "rejected"
)

// ExchangeError carries the failure class alongside the underlying cause.
type ExchangeError struct {
	Op    string
	Class FailureClass
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

func NewTransientError(op string, err error) *ExchangeError {
	return &ExchangeError{Op: op, Class: FailureTransient, Err: err}
}

func NewRejectedError(op string, err error) *ExchangeError {
	return &ExchangeError{Op: op, Class: FailureRejected, Err: err}
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Class == FailureTransient
	}
	return false
}
