package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives the raw payload of an event.
type Handler func(payload json.RawMessage)

// Subscription identifies one registered handler.
type Subscription struct {
	Event string
	ID    uuid.UUID
}

type entry struct {
	id      uuid.UUID
	handler Handler
}

// Bus is an in-process publish/subscribe hub. Handlers run synchronously
// on the emitting goroutine, each under its own recover.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	logger   *slog.Logger
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{handlers: make(map[string][]entry), logger: logger}
}

// On registers h for event.
func (b *Bus) On(event string, h Handler) Subscription {
	sub := Subscription{Event: event, ID: uuid.New()}
	b.mu.Lock()
	b.handlers[event] = append(b.handlers[event], entry{id: sub.ID, handler: h})
	b.mu.Unlock()
	return sub
}

// Off removes a handler. It reports whether the subscription was live.
func (b *Bus) Off(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.Event]
	for i, e := range list {
		if e.id != sub.ID {
			continue
		}
		out := make([]entry, 0, len(list)-1)
		out = append(out, list[:i]...)
		out = append(out, list[i+1:]...)
		if len(out) == 0 {
			delete(b.handlers, sub.Event)
		} else {
			b.handlers[sub.Event] = out
		}
		return true
	}
	return false
}

// Emit delivers payload to every handler of event and returns how many
// were called.
func (b *Bus) Emit(event string, payload json.RawMessage) int {
	b.mu.RLock()
	list := b.handlers[event]
	b.mu.RUnlock()
	for _, e := range list {
		b.call(event, e.handler, payload)
	}
	return len(list)
}

// Count returns the number of handlers registered for event.
func (b *Bus) Count(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}

func (b *Bus) call(event string, h Handler, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("realtime subscriber panicked",
				slog.String("event", event),
				slog.Any("error", fmt.Errorf("%v", r)))
		}
	}()
	h(payload)
}
