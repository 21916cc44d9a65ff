package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusOnOffEmit(t *testing.T) {
	bus := NewBus(nil)
	var calls []string

	a := bus.On("x", func(json.RawMessage) { calls = append(calls, "a") })
	bus.On("x", func(json.RawMessage) { calls = append(calls, "b") })

	assert.Equal(t, 2, bus.Emit("x", nil))
	assert.Equal(t, []string{"a", "b"}, calls)

	assert.True(t, bus.Off(a))
	assert.False(t, bus.Off(a))
	calls = nil
	assert.Equal(t, 1, bus.Emit("x", nil))
	assert.Equal(t, []string{"b"}, calls)
	assert.Zero(t, bus.Emit("y", nil))
}

func TestBusHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	bus := NewBus(nil)
	var sub Subscription
	count := 0
	sub = bus.On("x", func(json.RawMessage) {
		count++
		bus.Off(sub)
	})

	bus.Emit("x", nil)
	bus.Emit("x", nil)
	assert.Equal(t, 1, count)
	assert.Zero(t, bus.Count("x"))
}

func TestEventForFrame(t *testing.T) {
	assert.Equal(t, EventRequestUpdate, EventForFrame("request_update"))
	assert.Equal(t, "inventory_sync", EventForFrame("inventory_sync"))
}
