// Package collection keeps per-view caches of one data domain in step with
// the API: an initial fetch, then deltas pushed over the realtime bus.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-desk/internal/clock"
	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
)

var (
	// ErrClosed is returned by operations on a closed synchronizer.
	ErrClosed = errors.New("collection: synchronizer closed")
	// ErrNotOpen is returned by Refresh before Open.
	ErrNotOpen = errors.New("collection: synchronizer not open")
)

// EventSource is the bus deltas arrive on.
type EventSource interface {
	On(event string, h realtime.Handler) realtime.Subscription
	Off(sub realtime.Subscription) bool
}

// Connectivity reports the host's connectivity and its transitions.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// Metrics receives delta telemetry.
type Metrics interface {
	ObserveDelta(domain, action string, applied bool)
}

// ListFetcher loads a sequence cache.
type ListFetcher func(ctx context.Context) ([]Entity, error)

// ObjectFetcher loads a single-object cache.
type ObjectFetcher func(ctx context.Context) (Entity, error)

// Options configures a Synchronizer. Exactly one of FetchList and
// FetchObject must be set.
type Options struct {
	Domain string
	// Event overrides EventFor(Domain).
	Event        string
	IDField      string
	FetchList    ListFetcher
	FetchObject  ObjectFetcher
	Source       EventSource
	Connectivity Connectivity
	Clock        clock.Clock
	Logger       *slog.Logger
	Metrics      Metrics
}

// Snapshot is a read-only copy of the cache state.
type Snapshot struct {
	Domain      string    `json:"domain"`
	Items       []Entity  `json:"items,omitempty"`
	Object      Entity    `json:"object,omitempty"`
	Loading     bool      `json:"loading"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Synchronizer is one cache instance bound to a view lifetime.
type Synchronizer struct {
	opts   Options
	logger *slog.Logger
	group  singleflight.Group

	mu          sync.Mutex
	items       []Entity
	object      Entity
	loading     bool
	err         error
	lastUpdated time.Time
	opened      bool
	closed      bool
	life        context.Context
	cancel      context.CancelFunc
	sub         realtime.Subscription
	unwatch     func()
	online      bool
	// journal holds deltas applied while a fetch is in flight; they are
	// replayed over the fetch result so it cannot undo them.
	inFlight bool
	journal  []Delta
	watchers map[int]chan Snapshot
	nextID   int
}

// New builds a closed synchronizer. Call Open to start it.
func New(opts Options) *Synchronizer {
	if opts.IDField == "" {
		opts.IDField = "id"
	}
	if opts.Event == "" {
		opts.Event = EventFor(opts.Domain)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{
		opts:     opts,
		logger:   opts.Logger.With(slog.String("domain", opts.Domain)),
		online:   true,
		watchers: make(map[int]chan Snapshot),
	}
}

// Open subscribes to deltas and connectivity, then performs the initial
// fetch. The returned error is the fetch error, which is also kept on the
// cache.
func (s *Synchronizer) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.opened {
		s.mu.Unlock()
		return nil
	}
	s.opened = true
	s.life, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	if s.opts.Source != nil {
		sub := s.opts.Source.On(s.opts.Event, s.handle)
		s.mu.Lock()
		s.sub = sub
		s.mu.Unlock()
	}
	if s.opts.Connectivity != nil {
		unwatch := s.opts.Connectivity.Subscribe(s.connectivityChanged)
		online := s.opts.Connectivity.Online()
		s.mu.Lock()
		s.unwatch = unwatch
		s.online = online
		s.mu.Unlock()
	}
	return s.Refresh(ctx)
}

// Close unsubscribes and cancels any in-flight fetch. Late completions are
// discarded.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	sub, unwatch := s.sub, s.unwatch
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	if s.opts.Source != nil && sub.Event != "" {
		s.opts.Source.Off(sub)
	}
	if unwatch != nil {
		unwatch()
	}
	for _, ch := range watchers {
		close(ch)
	}
}

// Refresh refetches the cache. Concurrent calls share one fetch. On failure
// the previous data stays and the error is recorded.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case !s.opened:
		s.mu.Unlock()
		return ErrNotOpen
	}
	life := s.life
	s.mu.Unlock()

	ch := s.group.DoChan("fetch", func() (any, error) {
		return nil, s.fetch(life)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer) fetch(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading = true
	s.inFlight = true
	s.journal = nil
	s.mu.Unlock()
	s.notify()

	var (
		items  []Entity
		object Entity
		err    error
	)
	if s.opts.FetchObject != nil {
		object, err = s.opts.FetchObject(ctx)
	} else if s.opts.FetchList != nil {
		items, err = s.opts.FetchList(ctx)
	} else {
		err = errors.New("collection: no fetch function")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.loading = false
	s.inFlight = false
	journal := s.journal
	s.journal = nil
	if err != nil {
		s.err = err
		s.mu.Unlock()
		s.logger.Warn("collection fetch failed", slog.Any("error", err))
		s.notify()
		return err
	}
	if s.opts.FetchObject != nil {
		for _, d := range journal {
			object, _ = applyObject(object, d)
		}
		s.object = object
	} else {
		for _, d := range journal {
			items, _ = applyList(items, s.opts.IDField, d)
		}
		s.items = items
	}
	s.err = nil
	s.lastUpdated = s.opts.Clock.Now()
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Synchronizer) handle(payload json.RawMessage) {
	d, err := ParseDelta(payload)
	if err != nil {
		s.logger.Warn("collection dropped delta", slog.Any("error", err))
		return
	}
	s.Apply(d)
}

// Apply folds a delta into the cache and reports whether it changed
// anything.
func (s *Synchronizer) Apply(d Delta) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	var applied bool
	if s.opts.FetchObject != nil {
		s.object, applied = applyObject(s.object, d)
	} else {
		s.items, applied = applyList(s.items, s.opts.IDField, d)
	}
	if s.inFlight {
		s.journal = append(s.journal, d)
	}
	if applied {
		s.lastUpdated = s.opts.Clock.Now()
	}
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveDelta(s.opts.Domain, d.Action, applied)
	}
	if applied {
		s.notify()
	}
	return applied
}

func (s *Synchronizer) connectivityChanged(online bool) {
	s.mu.Lock()
	retry := online && !s.online && s.err != nil && !s.closed
	s.online = online
	life := s.life
	s.mu.Unlock()
	if !retry {
		return
	}
	s.logger.Info("collection recovering after reconnect")
	go func() {
		_ = s.Refresh(life)
	}()
}

// UpdateItem shallow-merges patch into the entry with id, or into the
// object cache. It reports whether anything changed.
func (s *Synchronizer) UpdateItem(id any, patch Entity) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	var changed bool
	if s.opts.FetchObject != nil {
		s.object, changed = applyObject(s.object, Delta{Action: ActionUpdate, Data: patch})
	} else if key, ok := NormalizeID(id); ok {
		s.items, changed = applyList(s.items, s.opts.IDField, Delta{Action: ActionUpdate, ID: key, Data: patch})
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// AddItem prepends entity, or merges it into an existing entry with the
// same id.
func (s *Synchronizer) AddItem(entity Entity) bool {
	s.mu.Lock()
	if s.closed || s.opts.FetchObject != nil {
		s.mu.Unlock()
		return false
	}
	var changed bool
	if key, ok := NormalizeID(entity[s.opts.IDField]); ok {
		s.items, changed = applyList(s.items, s.opts.IDField, Delta{Action: ActionCreate, ID: key, Data: entity})
	} else {
		s.items = append([]Entity{merge(nil, entity)}, s.items...)
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// RemoveItem drops the entry with id.
func (s *Synchronizer) RemoveItem(id any) bool {
	key, ok := NormalizeID(id)
	if !ok {
		return false
	}
	s.mu.Lock()
	if s.closed || s.opts.FetchObject != nil {
		s.mu.Unlock()
		return false
	}
	var changed bool
	s.items, changed = applyList(s.items, s.opts.IDField, Delta{Action: ActionDelete, ID: key})
	s.mu.Unlock()
	if changed {
		s.notify()
	}
	return changed
}

// Items returns a copy of the sequence cache.
func (s *Synchronizer) Items() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entity(nil), s.items...)
}

// Object returns a copy of the object cache.
func (s *Synchronizer) Object() Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.object == nil {
		return nil
	}
	return merge(nil, s.object)
}

// Loading reports whether a fetch is pending.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last fetch error, cleared by a successful fetch.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LastUpdated returns when the cache last changed from the server side.
func (s *Synchronizer) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Snapshot copies the current state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	snap := Snapshot{
		Domain:      s.opts.Domain,
		Loading:     s.loading,
		LastUpdated: s.lastUpdated,
	}
	if s.opts.FetchObject != nil {
		if s.object != nil {
			snap.Object = merge(nil, s.object)
		}
	} else {
		snap.Items = append([]Entity(nil), s.items...)
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// Subscribe returns a channel that always holds the latest snapshot once
// the cache changes. The channel is closed by Close or by the returned
// cancel func.
func (s *Synchronizer) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			_, live := s.watchers[id]
			delete(s.watchers, id)
			s.mu.Unlock()
			if live {
				close(ch)
			}
		})
	}
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
