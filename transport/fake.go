package transport

import (
	"context"
	"sync"
)

// Fake is an in-memory Transport used by the rosbridge package's own
// tests to drive the connection manager and multiplexer without a real
// socket, the same way the teacher swaps a fake publisher connection into
// defaultSubscriber in its unit tests.
type Fake struct {
	mu         sync.Mutex
	sent       []string
	events     chan Event
	connectErr error // returned once by the next Connect call, then cleared
	connected  bool
}

// NewFake constructs an unconnected Fake transport.
func NewFake() *Fake {
	return &Fake{events: make(chan Event, 256)}
}

// FailNextConnect makes the next Connect call return err instead of
// succeeding, for exercising ConnectionFailed handling.
func (f *Fake) FailNextConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

func (f *Fake) Connect(ctx context.Context, url string) error {
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.connectErr = nil
		f.mu.Unlock()
		return err
	}
	f.connected = true
	f.mu.Unlock()

	f.events <- Event{Kind: EventOpen}
	return nil
}

func (f *Fake) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return nil
	}
	f.connected = false
	f.mu.Unlock()

	f.events <- Event{Kind: EventClose, Code: 1000, Reason: "closed by client"}
	return nil
}

func (f *Fake) Events() <-chan Event {
	return f.events
}

// Sent returns every frame sent so far, in order.
func (f *Fake) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

// InjectMessage simulates an inbound text frame from the server.
func (f *Fake) InjectMessage(text string) {
	f.events <- Event{Kind: EventMessage, Text: text}
}

// InjectClose simulates the server closing the connection, e.g. to test
// reconnect behavior.
func (f *Fake) InjectClose(code int, reason string) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.events <- Event{Kind: EventClose, Code: code, Reason: reason}
}
