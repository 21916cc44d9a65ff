package realtime

import (
	"context"
	"errors"
	"sync"
)

type readResult struct {
	data []byte
	err  error
}

type fakeConn struct {
	in        chan readResult
	closeOnce sync.Once

	mu     sync.Mutex
	writes []string
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan readResult, 16)}
}

func (c *fakeConn) Read() ([]byte, error) {
	r, ok := <-c.in
	if !ok {
		return nil, errors.New("use of closed connection")
	}
	return r.data, r.err
}

func (c *fakeConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	c.writes = append(c.writes, string(data))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.in) })
	return nil
}

func (c *fakeConn) push(frame string) { c.in <- readResult{data: []byte(frame)} }
func (c *fakeConn) fail(err error)    { c.in <- readResult{err: err} }

func (c *fakeConn) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu    sync.Mutex
	err   error
	urls  []string
	conns []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type recordingMetrics struct {
	mu         sync.Mutex
	reconnects []int
	frames     map[string]int
}

func (r *recordingMetrics) ObserveState(State) {}

func (r *recordingMetrics) ObserveReconnect(attempt int) {
	r.mu.Lock()
	r.reconnects = append(r.reconnects, attempt)
	r.mu.Unlock()
}

func (r *recordingMetrics) ObserveFrame(result string) {
	r.mu.Lock()
	if r.frames == nil {
		r.frames = map[string]int{}
	}
	r.frames[result]++
	r.mu.Unlock()
}

func (r *recordingMetrics) reconnectAttempts() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.reconnects...)
}

func (r *recordingMetrics) frameCount(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[result]
}
