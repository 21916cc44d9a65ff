// Package connectivity tracks whether the desk API is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-desk/internal/clock"
)

// Probe checks reachability; any error means offline.
type Probe interface {
	Ping(ctx context.Context) error
}

// Monitor polls a Probe and fans out online/offline transitions.
type Monitor struct {
	probe    Probe
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	listeners map[int]func(bool)
	nextID    int
}

// New returns a monitor that starts out online.
func New(probe Probe, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Monitor {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		probe:     probe,
		clock:     clk,
		interval:  interval,
		timeout:   3 * time.Second,
		logger:    logger,
		online:    true,
		listeners: make(map[int]func(bool)),
	}
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for transitions. fn runs on the goroutine that
// observed the change and must not block.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Set records a state and notifies listeners when it changed.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if online {
		m.logger.Info("connectivity restored")
	} else {
		m.logger.Warn("connectivity lost")
	}
	for _, fn := range fns {
		fn(online)
	}
}

// Check probes once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := m.probe.Ping(ctx)
	if err != nil {
		m.logger.Debug("connectivity probe failed", slog.Any("error", err))
	}
	m.Set(err == nil)
	return err == nil
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			m.Check(ctx)
		}
	}
}
