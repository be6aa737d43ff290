// Package health tracks exchange reachability with a background ping loop.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/golighter/internal/ports"
)

var log = logrus.WithField("component", "health")

const defaultInterval = 5 * time.Second

// Monitor pings the exchange status endpoint on a fixed interval. The HTTP
// layer refuses new trade submissions while the exchange is unreachable.
type Monitor struct {
	gw       ports.Gateway
	interval time.Duration
	healthy  atomic.Bool
	lastErr  atomic.Value // string
}

func NewMonitor(gw ports.Gateway) *Monitor {
	m := &Monitor{gw: gw, interval: defaultInterval}
	m.lastErr.Store("")
	return m
}

// Start runs the ping loop until ctx is done. The first check runs
// immediately so startup does not wait a full interval for a verdict.
func (m *Monitor) Start(ctx context.Context) {
	m.check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	err := m.gw.Ping(pingCtx)
	was := m.healthy.Load()
	if err != nil {
		m.healthy.Store(false)
		m.lastErr.Store(err.Error())
		if was {
			log.Warnf("exchange unreachable: %v", err)
		}
		return
	}
	m.healthy.Store(true)
	m.lastErr.Store("")
	if !was {
		log.Info("exchange reachable")
	}
}

// Healthy reports the last observed exchange state.
func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// LastError is the most recent ping failure, empty when healthy.
func (m *Monitor) LastError() string {
	s, _ := m.lastErr.Load().(string)
	return s
}
