package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/odyssey-erp/odyssey-desk/internal/auth"
	"github.com/odyssey-erp/odyssey-desk/internal/notification"
	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
)

type fakeAccounts struct {
	mu          sync.Mutex
	user        *auth.User
	userErr     error
	reply       *auth.LoginReply
	loginErr    error
	logoutErr   error
	updateErr   error
	changeErr   error
	userCalls   int
	logoutCalls int
	// entered and release, when set, hold CurrentUser until released.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeAccounts) CurrentUser(context.Context) (*auth.User, error) {
	f.mu.Lock()
	entered, release := f.entered, f.release
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user.Clone(), nil
}

func (f *fakeAccounts) Login(context.Context, auth.Credentials) (*auth.LoginReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.reply, nil
}

func (f *fakeAccounts) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, update auth.ProfileUpdate) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	u := f.user.Clone()
	if update.FirstName != "" {
		u.FirstName = update.FirstName
	}
	if update.Department != "" {
		u.Department = update.Department
	}
	return u, nil
}

func (f *fakeAccounts) ChangePassword(context.Context, auth.PasswordChange) error {
	return f.changeErr
}

type fakeNotes struct {
	mu       sync.Mutex
	items    []notification.Notification
	listErr  error
	readErr  error
	readIDs  []int64
	allCalls int
}

func (f *fakeNotes) List(context.Context) ([]notification.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]notification.Notification(nil), f.items...), nil
}

func (f *fakeNotes) MarkRead(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return f.readErr
	}
	f.readIDs = append(f.readIDs, id)
	return nil
}

func (f *fakeNotes) MarkAllRead(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return f.readErr
	}
	f.allCalls++
	return nil
}

// fakeRealtime records lifecycle calls and routes events through a real bus.
type fakeRealtime struct {
	bus *realtime.Bus

	mu          sync.Mutex
	connects    int
	disconnects int
	up          bool
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{bus: realtime.NewBus(nil)}
}

func (f *fakeRealtime) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.up = true
	return nil
}

func (f *fakeRealtime) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.up = false
}

func (f *fakeRealtime) On(event string, h realtime.Handler) realtime.Subscription {
	return f.bus.On(event, h)
}

func (f *fakeRealtime) Off(sub realtime.Subscription) bool {
	return f.bus.Off(sub)
}

func (f *fakeRealtime) push(event string, payload string) int {
	return f.bus.Emit(event, json.RawMessage(payload))
}

func (f *fakeRealtime) isUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.up
}

func (f *fakeRealtime) counts() (connects, disconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

// idleConn stays open until closed.
type idleConn struct {
	done      chan struct{}
	closeOnce sync.Once
}

func (c *idleConn) Read() ([]byte, error) {
	<-c.done
	return nil, errors.New("use of closed connection")
}

func (c *idleConn) Write([]byte) error { return nil }

func (c *idleConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// recordingDialer remembers every dialed URL.
type recordingDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*idleConn
}

func (d *recordingDialer) Dial(_ context.Context, url string) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := &idleConn{done: make(chan struct{})}
	d.urls = append(d.urls, url)
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *recordingDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *recordingDialer) closed(i int) bool {
	d.mu.Lock()
	conn := d.conns[i]
	d.mu.Unlock()
	select {
	case <-conn.done:
		return true
	default:
		return false
	}
}
