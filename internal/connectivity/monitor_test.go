package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-desk/internal/clock"
)

type stubProbe struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (p *stubProbe) Ping(context.Context) error {
	p.calls.Add(1)
	if p.down.Load() {
		return errors.New("dial tcp: connection refused")
	}
	return nil
}

func TestSetNotifiesOnlyOnTransitions(t *testing.T) {
	m := New(&stubProbe{}, nil, 0, nil)
	var got []bool
	unsubscribe := m.Subscribe(func(online bool) { got = append(got, online) })

	m.Set(true)
	m.Set(false)
	m.Set(false)
	m.Set(true)
	assert.Equal(t, []bool{false, true}, got)

	unsubscribe()
	m.Set(false)
	assert.Len(t, got, 2)
	assert.False(t, m.Online())
}

func TestRunProbesOnInterval(t *testing.T) {
	probe := &stubProbe{}
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := New(probe, clk, 10*time.Second, nil)

	var mu sync.Mutex
	var got []bool
	m.Subscribe(func(online bool) {
		mu.Lock()
		got = append(got, online)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, 5*time.Millisecond)

	probe.down.Store(true)
	clk.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond)

	probe.down.Store(false)
	clk.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return m.Online() }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	mu.Lock()
	assert.Equal(t, []bool{false, true}, got)
	mu.Unlock()
	assert.Equal(t, int32(2), probe.calls.Load())
}
