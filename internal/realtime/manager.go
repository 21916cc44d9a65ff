// Package realtime keeps a single reconnecting channel to the desk server
// and fans inbound frames out over an event bus.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/buger/jsonparser"

	"github.com/odyssey-erp/odyssey-desk/internal/clock"
)

// Metrics receives connection telemetry.
type Metrics interface {
	ObserveState(state State)
	ObserveReconnect(attempt int)
	ObserveFrame(result string)
}

// Frame results reported to Metrics.
const (
	FrameDispatched = "dispatched"
	FrameMalformed  = "malformed"
)

// ErrNotConnected is returned by Publish outside the connected state.
var ErrNotConnected = errors.New("realtime: not connected")

// TokenFunc returns the current credential, or "" when none is stored.
type TokenFunc func(ctx context.Context) string

// Options configures a Manager.
type Options struct {
	// URL is the ws(s) origin; ChannelPath and the token are appended.
	URL         string
	Token       TokenFunc
	Dialer      Dialer
	Clock       clock.Clock
	Backoff     Backoff
	Heartbeat   time.Duration
	DialTimeout time.Duration
	Logger      *slog.Logger
	Metrics     Metrics
}

// Manager owns the connection state machine.
type Manager struct {
	opts   Options
	bus    *Bus
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  error
	// gen invalidates callbacks from connections and timers that were
	// superseded by Connect or Disconnect.
	gen       uint64
	conn      Conn
	retry     clock.Timer
	heartbeat clock.Ticker
	stopBeat  chan struct{}
}

// NewManager constructs a disconnected manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Dialer == nil {
		opts.Dialer = NewGorillaDialer()
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	return &Manager{
		opts:   opts,
		bus:    NewBus(opts.Logger),
		logger: opts.Logger,
	}
}

// Bus exposes the event bus.
func (m *Manager) Bus() *Bus { return m.bus }

// On registers a handler on the bus.
func (m *Manager) On(event string, h Handler) Subscription { return m.bus.On(event, h) }

// Off removes a bus handler.
func (m *Manager) Off(sub Subscription) bool { return m.bus.Off(sub) }

// Emit publishes an event locally.
func (m *Manager) Emit(event string, payload json.RawMessage) int { return m.bus.Emit(event, payload) }

// Status returns a snapshot of the connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Attempts: m.attempts, LastErr: m.lastErr}
}

// Connect starts a connection attempt and returns without waiting for it.
// It is a no-op without a stored token or while already connecting or
// connected. An explicit Connect resets the reconnect budget.
func (m *Manager) Connect(ctx context.Context) error {
	if m.token(ctx) == "" {
		m.logger.Info("realtime connect skipped: no credential")
		return nil
	}

	m.mu.Lock()
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.stopRetryLocked()
	m.attempts = 0
	m.lastErr = nil
	m.gen++
	gen := m.gen
	if m.state == StateReconnecting {
		_ = m.transitionLocked(StateDisconnected)
	}
	if err := m.transitionLocked(StateConnecting); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	go m.open(gen)
	return nil
}

// Disconnect closes the channel cleanly and cancels any pending reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopRetryLocked()
	conn := m.teardownLocked()
	wasDown := m.state == StateDisconnected
	m.attempts = 0
	_ = m.transitionLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("realtime close", slog.Any("error", err))
		}
	}
	if !wasDown {
		m.logger.Info("realtime disconnected")
		m.bus.Emit(EventDisconnected, nil)
	}
}

// Publish sends an outbound {type, payload} frame.
func (m *Manager) Publish(frameType string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{frameType, payload})
	if err != nil {
		return fmt.Errorf("realtime: encode frame: %w", err)
	}
	return conn.Write(data)
}

func (m *Manager) token(ctx context.Context) string {
	if m.opts.Token == nil {
		return ""
	}
	return m.opts.Token(ctx)
}

func (m *Manager) open(gen uint64) {
	token := m.token(context.Background())
	target, urlErr := ChannelURL(m.opts.URL, token)

	var conn Conn
	err := urlErr
	if token == "" {
		err = errors.New("realtime: credential disappeared")
	} else if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.DialTimeout)
		conn, err = m.opts.Dialer.Dial(ctx, target)
		cancel()
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		if token == "" || urlErr != nil {
			m.lastErr = err
			_ = m.transitionLocked(StateDisconnected)
			m.mu.Unlock()
			m.logger.Warn("realtime connect aborted", slog.Any("error", err))
			return
		}
		m.scheduleLocked(err)
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.attempts = 0
	m.lastErr = nil
	_ = m.transitionLocked(StateConnected)
	ticker := m.opts.Clock.NewTicker(m.opts.Heartbeat)
	stop := make(chan struct{})
	m.heartbeat = ticker
	m.stopBeat = stop
	m.mu.Unlock()

	m.logger.Info("realtime connected")
	go m.beat(conn, ticker, stop)
	go m.readLoop(gen, conn)
	m.bus.Emit(EventConnected, nil)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.Read()
		if err != nil {
			m.lost(gen, err)
			return
		}
		m.dispatch(data)
	}
}

func (m *Manager) beat(conn Conn, ticker clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if err := conn.Write([]byte(heartbeatFrame)); err != nil {
				m.logger.Debug("realtime heartbeat", slog.Any("error", err))
			}
		}
	}
}

func (m *Manager) lost(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	if errors.Is(err, ErrClosed) {
		_ = m.transitionLocked(StateDisconnected)
		m.mu.Unlock()
		m.logger.Info("realtime closed by server")
		m.bus.Emit(EventDisconnected, nil)
		return
	}
	m.scheduleLocked(err)
	m.mu.Unlock()
	m.logger.Warn("realtime connection lost", slog.Any("error", err))
	m.bus.Emit(EventDisconnected, nil)
}

// scheduleLocked arms the next reconnect or gives up at the ceiling.
func (m *Manager) scheduleLocked(cause error) {
	m.lastErr = cause
	delay, ok := m.opts.Backoff.Next(m.attempts)
	if !ok {
		_ = m.transitionLocked(StateDisconnected)
		m.logger.Warn("realtime reconnect attempts exhausted",
			slog.Int("attempts", m.attempts),
			slog.Any("error", cause))
		return
	}
	m.attempts++
	_ = m.transitionLocked(StateReconnecting)
	m.opts.Metrics.ObserveReconnect(m.attempts)
	m.logger.Debug("realtime reconnect scheduled",
		slog.Int("attempt", m.attempts),
		slog.Duration("delay", delay))
	gen := m.gen
	m.retry = m.opts.Clock.AfterFunc(delay, func() { m.retryFired(gen) })
}

func (m *Manager) retryFired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	_ = m.transitionLocked(StateConnecting)
	m.mu.Unlock()
	go m.open(gen)
}

func (m *Manager) dispatch(data []byte) {
	frameType, err := jsonparser.GetString(data, "type")
	if err != nil || frameType == "" {
		m.malformed(data, err)
		return
	}
	payload, kind, _, err := jsonparser.Get(data, "payload")
	switch {
	case errors.Is(err, jsonparser.KeyPathNotFoundError):
		payload = nil
	case err != nil:
		m.malformed(data, err)
		return
	case kind == jsonparser.String:
		quoted := make([]byte, 0, len(payload)+2)
		quoted = append(quoted, '"')
		quoted = append(quoted, payload...)
		payload = append(quoted, '"')
	}
	m.opts.Metrics.ObserveFrame(FrameDispatched)
	m.bus.Emit(EventForFrame(frameType), json.RawMessage(payload))
}

func (m *Manager) malformed(data []byte, err error) {
	m.opts.Metrics.ObserveFrame(FrameMalformed)
	if err == nil {
		err = errors.New("missing type")
	}
	m.logger.Warn("realtime dropped malformed frame",
		slog.Int("bytes", len(data)),
		slog.Any("error", err))
}

func (m *Manager) transitionLocked(next State) error {
	if err := m.state.validateTransitionTo(next); err != nil {
		m.logger.Error("realtime transition", slog.Any("error", err))
		return err
	}
	if m.state != next {
		m.logger.Debug("realtime state", slog.String("from", m.state.String()), slog.String("to", next.String()))
	}
	m.state = next
	m.opts.Metrics.ObserveState(next)
	return nil
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// teardownLocked stops the heartbeat and detaches the live connection,
// returning it for the caller to close.
func (m *Manager) teardownLocked() Conn {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.stopBeat != nil {
		close(m.stopBeat)
		m.stopBeat = nil
	}
	conn := m.conn
	m.conn = nil
	return conn
}

type nopMetrics struct{}

func (nopMetrics) ObserveState(State)   {}
func (nopMetrics) ObserveReconnect(int) {}
func (nopMetrics) ObserveFrame(string)  {}
