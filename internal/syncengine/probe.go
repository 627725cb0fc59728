package syncengine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/razamarafat/morvarid-APP-sub000/internal/remote"
)

// Monitor tracks connectivity to the remote store by issuing head-only
// counts on a ticker, the same probe the browser app ran against the
// backend. Listeners are notified on every offline->online transition.
type Monitor struct {
	store    remote.Store
	table    string
	interval time.Duration
	logger   *zap.Logger

	online int32 // 1 when the last probe succeeded

	mu        sync.Mutex
	listeners []func()
}

// NewMonitor builds a connectivity monitor probing the given table.
func NewMonitor(store remote.Store, table string, interval time.Duration, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:    store,
		table:    table,
		interval: interval,
		logger:   logger,
		online:   1, // assume online until a probe says otherwise
	}
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool { return atomic.LoadInt32(&m.online) == 1 }

// OnOnline registers fn to run on every offline->online transition.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start runs the probe loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe runs one connectivity check and fires transition listeners.
func (m *Monitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.store.Count(probeCtx, m.table, nil)
	nowOnline := err == nil || !remote.IsNetwork(err)

	wasOnline := atomic.SwapInt32(&m.online, boolToInt(nowOnline)) == 1
	switch {
	case nowOnline && !wasOnline:
		m.logger.Info("connectivity restored")
		m.mu.Lock()
		listeners := append([]func(){}, m.listeners...)
		m.mu.Unlock()
		for _, fn := range listeners {
			fn()
		}
	case !nowOnline && wasOnline:
		m.logger.Warn("connectivity lost", zap.Error(err))
	}
	return nowOnline
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
