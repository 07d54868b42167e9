package storage

import (
	"context"
	"sync"
	"time"

	"github.com/chrissnell/pvforecast/internal/log"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the outcome of one store health check.
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// HealthMonitor pings a store periodically and keeps the latest result.
type HealthMonitor struct {
	store    Store
	interval time.Duration
	onChange func(healthy bool)

	mu     sync.RWMutex
	health *Health
}

// NewHealthMonitor returns a monitor for store.  onChange, if not nil, is
// called after every check with its outcome.
func NewHealthMonitor(store Store, interval time.Duration, onChange func(healthy bool)) *HealthMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HealthMonitor{store: store, interval: interval, onChange: onChange}
}

// Check pings the store once and records the result.
func (m *HealthMonitor) Check(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	h := Health{LastCheck: time.Now(), Status: StatusHealthy}
	if err := m.store.Ping(ctx); err != nil {
		h.Status = StatusUnhealthy
		h.Error = err.Error()
	}

	m.mu.Lock()
	prev := m.health
	m.health = &h
	m.mu.Unlock()

	if prev == nil || prev.Status != h.Status {
		if h.Status == StatusHealthy {
			log.Infow("result store is healthy")
		} else {
			log.Warnw("result store is unhealthy", "error", h.Error)
		}
	}
	if m.onChange != nil {
		m.onChange(h.Status == StatusHealthy)
	}
	return h
}

// Health returns the latest result, or false before the first check.
func (m *HealthMonitor) Health() (Health, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.health == nil {
		return Health{}, false
	}
	return *m.health, true
}

// IsHealthy reports whether the latest check succeeded and is no older than maxAge.
func (m *HealthMonitor) IsHealthy(maxAge time.Duration) bool {
	h, ok := m.Health()
	if !ok || time.Since(h.LastCheck) > maxAge {
		return false
	}
	return h.Status == StatusHealthy
}

// Start checks immediately and then every interval until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Check(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Check(ctx)
			case <-ctx.Done():
				log.Info("stopping result store health monitor")
				return
			}
		}
	}()
}
