// Package session owns the authenticated-user lifecycle of a desk agent:
// bootstrap from the stored credential, login and logout, profile changes,
// the notification feed and the coupling to the realtime channel.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/odyssey-erp/odyssey-desk/internal/api"
	"github.com/odyssey-erp/odyssey-desk/internal/auth"
	"github.com/odyssey-erp/odyssey-desk/internal/clock"
	"github.com/odyssey-erp/odyssey-desk/internal/notification"
	"github.com/odyssey-erp/odyssey-desk/internal/rbac"
	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// State is the session lifecycle state.
type State int

const (
	StateBootstrapping State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// Accounts is the account service the session drives.
type Accounts interface {
	CurrentUser(ctx context.Context) (*auth.User, error)
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginReply, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error)
	ChangePassword(ctx context.Context, change auth.PasswordChange) error
}

// Realtime is the channel the session starts and stops.
type Realtime interface {
	Connect(ctx context.Context) error
	Disconnect()
	On(event string, h realtime.Handler) realtime.Subscription
	Off(sub realtime.Subscription) bool
}

// Options wires a Manager.
type Options struct {
	Accounts      Accounts
	Notifications notification.Repository
	Tokens        auth.TokenStore
	Realtime      Realtime
	Catalog       *rbac.Catalog
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Snapshot is what subscribers observe after every change.
type Snapshot struct {
	State  State
	User   *auth.User
	Online bool
	Unread int
}

// LoginResult reports a login attempt. Failures never mutate the session.
type LoginResult struct {
	OK      bool
	Message string
	Fields  map[string]string
	User    *auth.User
}

// Manager is one explicitly constructed session.
type Manager struct {
	opts   Options
	logger *slog.Logger

	// opMu serializes Bootstrap and Login. Logout never waits on it.
	opMu sync.Mutex

	mu    sync.Mutex
	state State
	user  *auth.User
	// gen identifies the current session. Login and teardown bump it, and
	// a completion that captured an older value is discarded.
	gen       uint64
	online    bool
	notes     notification.List
	listeners map[int]func(Snapshot)
	nextID    int

	// rtMu orders realtime Connect/Disconnect calls without holding mu.
	rtMu       sync.Mutex
	noteSub    realtime.Subscription
	subscribed bool
	// rtGen is the session the channel was last started for.
	rtGen    uint64
	rtActive bool
}

// NewManager returns a manager in the bootstrapping state.
func NewManager(opts Options) *Manager {
	if opts.Catalog == nil {
		opts.Catalog = rbac.DefaultCatalog()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		opts:      opts,
		logger:    opts.Logger,
		state:     StateBootstrapping,
		online:    true,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Bootstrap resolves the initial state from the stored credential. Any
// failure demotes silently to anonymous.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()
	token, err := m.opts.Tokens.Load(ctx)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) {
			m.logger.Warn("session load token", slog.Any("error", err))
		}
		m.resolveAnonymous(gen)
		return
	}
	if auth.TokenExpired(token, m.opts.Clock.Now()) {
		m.logger.Info("session stored token expired")
		if m.generation() == gen {
			m.discardToken(ctx)
		}
		m.resolveAnonymous(gen)
		return
	}

	user, err := m.opts.Accounts.CurrentUser(ctx)
	if m.generation() != gen {
		m.logger.Debug("session bootstrap superseded")
		return
	}
	if err != nil {
		m.logger.Info("session bootstrap rejected", slog.Any("error", err))
		m.discardToken(ctx)
		m.resolveAnonymous(gen)
		return
	}

	if !m.authenticate(gen, user, false) {
		m.logger.Debug("session bootstrap superseded")
		return
	}
	m.reconcile(ctx)
	if err := m.RefreshNotifications(ctx); err != nil {
		m.logger.Warn("session initial notifications", slog.Any("error", err))
	}
}

// Login exchanges credentials for a session. Logging in over an existing
// session replaces it, including the realtime channel.
func (m *Manager) Login(ctx context.Context, creds auth.Credentials) LoginResult {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	gen := m.generation()
	reply, err := m.opts.Accounts.Login(ctx, creds)
	if err != nil {
		return loginFailure(err)
	}
	if reply.Credential() == "" {
		return loginFailure(shared.ErrInvalidCredentials)
	}
	previous, err := m.opts.Tokens.Load(ctx)
	if err != nil {
		previous = ""
	}
	if err := m.opts.Tokens.Save(ctx, reply.Credential()); err != nil {
		m.logger.Error("session save token", slog.Any("error", err))
		return LoginResult{Message: "Unable to store credentials"}
	}

	user := reply.User
	if user == nil {
		user, err = m.opts.Accounts.CurrentUser(ctx)
		if err != nil {
			m.restoreToken(ctx, previous)
			return loginFailure(err)
		}
	}

	if !m.authenticate(gen, user, true) {
		// A logout landed while the login was in flight.
		m.discardToken(ctx)
		return LoginResult{Message: genericLoginFailure}
	}
	m.reconcile(ctx)
	if err := m.RefreshNotifications(ctx); err != nil {
		m.logger.Warn("session notifications after login", slog.Any("error", err))
	}
	return LoginResult{OK: true, User: m.User()}
}

const genericLoginFailure = "Login failed. Please try again."

func loginFailure(err error) LoginResult {
	var vErr *auth.ValidationError
	switch {
	case errors.As(err, &vErr):
		return LoginResult{Message: "Username and password are required", Fields: vErr.Fields}
	case errors.Is(err, shared.ErrInvalidCredentials):
		return LoginResult{Message: "Invalid username or password"}
	default:
		return LoginResult{Message: api.MessageOf(err, genericLoginFailure)}
	}
}

// Logout invalidates the server token best effort, then tears down local
// state unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	if m.State() == StateAuthenticated {
		if err := m.opts.Accounts.Logout(ctx); err != nil {
			m.logger.Debug("session server logout", slog.Any("error", err))
		}
	}
	m.teardown(ctx)
}

// UpdateProfile submits a profile change and replaces the local user.
func (m *Manager) UpdateProfile(ctx context.Context, update auth.ProfileUpdate) (*auth.User, error) {
	gen, ok := m.current()
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}
	user, err := m.opts.Accounts.UpdateProfile(ctx, update)
	if err != nil {
		m.checkRejected(ctx, gen, err)
		return nil, err
	}
	m.mu.Lock()
	if m.user != nil && m.gen == gen {
		m.user = m.withPermissions(user)
	}
	m.mu.Unlock()
	m.notify()
	return m.User(), nil
}

// ChangePassword submits a password change.
func (m *Manager) ChangePassword(ctx context.Context, change auth.PasswordChange) error {
	gen, ok := m.current()
	if !ok {
		return shared.ErrNotAuthenticated
	}
	err := m.opts.Accounts.ChangePassword(ctx, change)
	if err != nil {
		m.checkRejected(ctx, gen, err)
	}
	return err
}

// RefreshNotifications replaces the feed with the first server page.
func (m *Manager) RefreshNotifications(ctx context.Context) error {
	gen, ok := m.current()
	if m.opts.Notifications == nil || !ok {
		return nil
	}
	items, err := m.opts.Notifications.List(ctx)
	if err != nil {
		m.checkRejected(ctx, gen, err)
		return err
	}
	m.mu.Lock()
	if m.user != nil && m.gen == gen {
		m.notes.Replace(items)
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// MarkRead acknowledges id on the server, then flips the local flag.
func (m *Manager) MarkRead(ctx context.Context, id int64) error {
	gen, ok := m.current()
	if !ok {
		return shared.ErrNotAuthenticated
	}
	if err := m.opts.Notifications.MarkRead(ctx, id); err != nil {
		m.checkRejected(ctx, gen, err)
		return err
	}
	m.mu.Lock()
	m.notes.MarkRead(id)
	m.mu.Unlock()
	m.notify()
	return nil
}

// MarkAllRead acknowledges every notification.
func (m *Manager) MarkAllRead(ctx context.Context) error {
	gen, ok := m.current()
	if !ok {
		return shared.ErrNotAuthenticated
	}
	if err := m.opts.Notifications.MarkAllRead(ctx); err != nil {
		m.checkRejected(ctx, gen, err)
		return err
	}
	m.mu.Lock()
	m.notes.MarkAllRead()
	m.mu.Unlock()
	m.notify()
	return nil
}

// UnreadCount counts unread feed entries.
func (m *Manager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes.UnreadCount()
}

// Notifications returns a copy of the feed, most recent first.
func (m *Manager) Notifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes.Items()
}

// SetOnline records host connectivity. Going offline keeps the session and
// only suspends the realtime channel.
func (m *Manager) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.mu.Unlock()
	m.notify()
	m.reconcile(ctx)
}

// Online reports the last recorded connectivity.
func (m *Manager) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Bootstrapping reports whether the initial state is still unresolved.
func (m *Manager) Bootstrapping() bool {
	return m.State() == StateBootstrapping
}

// User returns a copy of the current user, nil when anonymous.
func (m *Manager) User() *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user.Clone()
}

// Capability derives a fresh capability from the current user.
func (m *Manager) Capability() rbac.Capability {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rbac.Derive(m.user.Subject(), m.opts.Catalog)
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn for every change and returns its unsubscribe
// func. fn runs outside the session lock.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
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

// Close stops the realtime channel. The session state is left intact.
func (m *Manager) Close() {
	if rt := m.opts.Realtime; rt != nil {
		m.rtMu.Lock()
		if m.subscribed {
			rt.Off(m.noteSub)
			m.subscribed = false
		}
		m.rtMu.Unlock()
		rt.Disconnect()
	}
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// current returns the session generation and whether a user is present.
func (m *Manager) current() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, m.user != nil
}

// authenticate installs user unless the session moved past gen. A fresh
// login starts a new generation with an empty feed.
func (m *Manager) authenticate(gen uint64, user *auth.User, fresh bool) bool {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return false
	}
	if fresh {
		m.gen++
		m.notes.Clear()
	}
	m.user = m.withPermissions(user)
	m.state = StateAuthenticated
	m.mu.Unlock()
	m.logger.Info("session authenticated",
		slog.Int64("user_id", user.ID),
		slog.String("role", rbac.ParseRole(user.Role).String()))
	m.notify()
	return true
}

// resolveAnonymous ends bootstrapping unless the session moved past gen.
func (m *Manager) resolveAnonymous(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.user = nil
	m.state = StateAnonymous
	m.notes.Clear()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) teardown(ctx context.Context) {
	m.mu.Lock()
	m.gen++
	m.user = nil
	m.state = StateAnonymous
	m.notes.Clear()
	m.mu.Unlock()
	m.discardToken(ctx)
	m.notify()
	m.reconcile(ctx)
}

// checkRejected treats a rejected credential mid-session as a logout, as
// long as the request belonged to the current session.
func (m *Manager) checkRejected(ctx context.Context, gen uint64, err error) {
	if api.StatusOf(err) != http.StatusUnauthorized || m.generation() != gen {
		return
	}
	m.logger.Warn("session credential rejected, logging out")
	m.teardown(ctx)
}

func (m *Manager) restoreToken(ctx context.Context, previous string) {
	if previous == "" {
		m.discardToken(ctx)
		return
	}
	if err := m.opts.Tokens.Save(ctx, previous); err != nil {
		m.logger.Warn("session restore token", slog.Any("error", err))
	}
}

func (m *Manager) discardToken(ctx context.Context) {
	if err := m.opts.Tokens.Delete(ctx); err != nil {
		m.logger.Warn("session delete token", slog.Any("error", err))
	}
}

func (m *Manager) withPermissions(user *auth.User) *auth.User {
	u := user.Clone()
	u.Permissions = rbac.Derive(u.Subject(), m.opts.Catalog).Permissions()
	return u
}

// reconcile starts the realtime channel when a user is present and the
// host is online, and stops it otherwise.
func (m *Manager) reconcile(ctx context.Context) {
	rt := m.opts.Realtime
	if rt == nil {
		return
	}
	m.rtMu.Lock()
	defer m.rtMu.Unlock()

	m.mu.Lock()
	hasUser, online, gen := m.user != nil, m.online, m.gen
	m.mu.Unlock()

	switch {
	case hasUser && !m.subscribed:
		m.noteSub = rt.On(realtime.EventNotification, m.onNotification)
		m.subscribed = true
	case !hasUser && m.subscribed:
		rt.Off(m.noteSub)
		m.subscribed = false
	}
	if hasUser && online {
		if m.rtActive && m.rtGen != gen {
			// The channel carries the previous session's credential.
			rt.Disconnect()
		}
		m.rtActive, m.rtGen = true, gen
		if err := rt.Connect(ctx); err != nil {
			m.logger.Warn("session realtime connect", slog.Any("error", err))
		}
		return
	}
	m.rtActive = false
	rt.Disconnect()
}

func (m *Manager) onNotification(payload json.RawMessage) {
	n, err := notification.FromPayload(payload)
	if err != nil {
		m.logger.Warn("session dropped notification", slog.Any("error", err))
		return
	}
	if n.ID == 0 {
		m.logger.Debug("session notification without id", slog.String("type", n.Type))
	}
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return
	}
	m.notes.Prepend(n)
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:  m.state,
		User:   m.user.Clone(),
		Online: m.online,
		Unread: m.notes.UnreadCount(),
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
