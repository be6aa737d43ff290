// Package retry bounds exchange calls to a fixed number of attempts with a
// fixed sleep between them. Only transient failures are retried; the failure
// class set by the gateway is never second-guessed here.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/domain"
	"github.com/betbot/golighter/internal/metrics"
)

var log = logrus.WithField("component", "retry")

// ErrExchangeUnavailable wraps the last transient failure after the attempt
// budget is spent.
var ErrExchangeUnavailable = errors.New("exchange unavailable")

// Retrier executes operations with a fixed attempt budget.
type Retrier struct {
	maxAttempts int
	interval    time.Duration
}

func New(maxAttempts int, interval time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{maxAttempts: maxAttempts, interval: interval}
}

// Do runs fn up to the attempt budget. Non-transient errors return
// immediately; transient ones are retried after the fixed interval.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
		lastErr = err
		metrics.RetryAttempts.Add(1)
		log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"max":     r.maxAttempts,
		}).Warnf("transient failure: %v", err)
		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.interval):
		}
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrExchangeUnavailable, op, r.maxAttempts, lastErr)
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, r *Retrier, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, op, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}
