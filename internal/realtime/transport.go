package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed marks a read that ended with a normal close handshake.
var ErrClosed = errors.New("realtime: connection closed")

// Dialer opens channel connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one open channel. Read returns an error wrapping ErrClosed when
// the peer closed cleanly; any other error is an unclean loss.
type Conn interface {
	Read() ([]byte, error)
	Write(data []byte) error
	Close() error
}

// ChannelPath is the notification channel endpoint.
const ChannelPath = "/ws/notifications/"

// ChannelURL builds the channel address for base with token as the query
// credential.
func ChannelURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("realtime: parse url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("realtime: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + ChannelPath
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BaseFromAPI derives the ws(s) origin from an http(s) API address.
func BaseFromAPI(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("realtime: unsupported api scheme %q", u.Scheme)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(), nil
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
}

// NewGorillaDialer returns a dialer with default settings.
func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{
		Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		},
		WriteTimeout: 10 * time.Second,
	}
}

func (d *GorillaDialer) Dial(ctx context.Context, target string) (Conn, error) {
	conn, res, err := d.Dialer.DialContext(ctx, target, nil)
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("realtime: dial: status %d: %w", res.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: dial: %w", err)
	}
	return &gorillaConn{conn: conn, writeTimeout: d.WriteTimeout}, nil
}

type gorillaConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

func (c *gorillaConn) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (c *gorillaConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *gorillaConn) Close() error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	c.mu.Unlock()
	if err := c.conn.Close(); err != nil {
		return err
	}
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return werr
	}
	return nil
}
