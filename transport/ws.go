package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WebSocket is the production Transport, backed by gorilla/websocket.
// Writes are funnelled through a single goroutine so concurrent callers
// never interleave frames on the wire, and reads run on their own
// goroutine so a slow consumer of Events() cannot stall the pinger. The
// shape is grounded on the connect/readLoop/pingLoop split used for
// exchange WebSocket feeds in the wider pack.
type WebSocket struct {
	dialer           websocket.Dialer
	handshakeTimeout time.Duration
	pingInterval     time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	events chan Event
	writeq chan string
	done   chan struct{}
	closed bool
}

// Option configures a WebSocket transport.
type Option func(*WebSocket)

// WithHandshakeTimeout bounds how long Connect waits for the upgrade.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(t *WebSocket) { t.handshakeTimeout = d }
}

// WithPingInterval sets how often a control ping is sent once connected.
// Zero disables pinging.
func WithPingInterval(d time.Duration) Option {
	return func(t *WebSocket) { t.pingInterval = d }
}

// NewWebSocket constructs an unconnected WebSocket transport.
func NewWebSocket(opts ...Option) *WebSocket {
	t := &WebSocket{
		handshakeTimeout: 10 * time.Second,
		pingInterval:     30 * time.Second,
		events:           make(chan Event, 64),
		writeq:           make(chan string, 256),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.dialer = websocket.Dialer{HandshakeTimeout: t.handshakeTimeout}
	return t
}

func (t *WebSocket) Connect(ctx context.Context, url string) error {
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial rosbridge websocket")
	}

	t.mu.Lock()
	t.conn = conn
	t.done = make(chan struct{})
	t.closed = false
	done := t.done
	t.mu.Unlock()

	t.emit(Event{Kind: EventOpen})

	go t.writeLoop(conn, done)
	go t.readLoop(conn, done)
	if t.pingInterval > 0 {
		go t.pingLoop(conn, done)
	}
	return nil
}

func (t *WebSocket) Send(text string) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done == nil {
		return errors.New("transport not connected")
	}

	select {
	case t.writeq <- text:
		return nil
	case <-done:
		return errors.New("transport closed")
	}
}

func (t *WebSocket) writeLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case text := <-t.writeq:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				t.emit(Event{Kind: EventError, Err: errors.Wrap(err, "write frame")})
				return
			}
		case <-done:
			return
		}
	}
}

func (t *WebSocket) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeInfo(err)
			t.finish(done, code, reason)
			return
		}
		select {
		case <-done:
			return
		default:
		}
		t.emit(Event{Kind: EventMessage, Text: string(data)})
	}
}

func (t *WebSocket) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(t.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				t.emit(Event{Kind: EventError, Err: errors.Wrap(err, "ping")})
			}
		case <-done:
			return
		}
	}
}

func (t *WebSocket) finish(done chan struct{}, code int, reason string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	close(done)
	t.emit(Event{Kind: EventClose, Code: code, Reason: reason})
}

func (t *WebSocket) Close() error {
	t.mu.Lock()
	conn := t.conn
	done := t.done
	alreadyClosed := t.closed
	t.mu.Unlock()

	if conn == nil || alreadyClosed {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()

	t.finish(done, websocket.CloseNormalClosure, "closed by client")
	return nil
}

func (t *WebSocket) Events() <-chan Event {
	return t.events
}

func (t *WebSocket) emit(ev Event) {
	t.events <- ev
}

func closeInfo(err error) (int, string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
