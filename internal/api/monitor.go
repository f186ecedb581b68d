package api

import (
	"context"
	"time"

	"hirestimer/internal/obs"
)

// LeaseMonitor periodically releases remote handles whose lease expired
// without a renew. Without it, an HTTP client that crashed mid-lease
// would keep the OS timer policy elevated indefinitely.
type LeaseMonitor struct {
	server   *Server
	logger   *obs.Logger
	metrics  *obs.Metrics
	interval time.Duration
}

func NewLeaseMonitor(server *Server, logger *obs.Logger, metrics *obs.Metrics, interval time.Duration) *LeaseMonitor {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &LeaseMonitor{
		server:   server,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

func (m *LeaseMonitor) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	// Run once immediately
	m.sweepOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweepOnce()
		}
	}
}

func (m *LeaseMonitor) sweepOnce() {
	start := time.Now()
	now := time.Now()

	s := m.server
	s.mu.Lock()
	var expired []*remoteHandle
	for id, rh := range s.handles {
		if now.After(rh.expiry) {
			expired = append(expired, rh)
			delete(s.handles, id)
		}
	}
	remaining := len(s.handles)
	s.mu.Unlock()

	for _, rh := range expired {
		rh.h.Release()
	}

	if m.metrics != nil {
		m.metrics.RemoteHandles.Set(float64(remaining))
		if len(expired) > 0 {
			m.metrics.LeasesExpiredTotal.Add(float64(len(expired)))
		}
	}

	// Only log when something was actually swept.
	if m.logger != nil && len(expired) > 0 {
		m.logger.Info(map[string]interface{}{
			"op":         "lease_sweep",
			"expired":    len(expired),
			"remaining":  remaining,
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}
