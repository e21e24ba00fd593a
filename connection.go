package rosbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/rocos-io/rosbridge-go/metrics"
	"github.com/rocos-io/rosbridge-go/transport"
)

// connState is the connection manager's lifecycle state (spec section 4.2).
type connState int32

const (
	stateClosed connState = iota
	stateOpening
	stateOpen
	stateReady
	stateClosing
)

func (s connState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpening:
		return "opening"
	case stateOpen:
		return "open"
	case stateReady:
		return "ready"
	case stateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// BackoffConfig controls reconnect timing (spec section 4.2).
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	MaxRetries   int // 0 means unlimited
}

// DefaultBackoffConfig matches the spec's defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Factor:       2,
		MaxRetries:   0,
	}
}

func (c BackoffConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= c.Factor
		if d >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	if time.Duration(d) > c.MaxDelay {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// connectionManager drives the transport lifecycle: dials, authenticates,
// and on an unexpected close retries with exponential backoff, resetting
// its attempt counter on every successful ready. It never touches topic
// or service registries directly — it only emits events the session
// subscribes to, the same separation the teacher keeps between its
// subscription goroutine and the action client that observes it.
type connectionManager struct {
	url     string
	auth    Value
	backoff BackoffConfig
	bus     *EventBus
	logger  *modular.ModuleLogger
	tr      transport.Transport
	onFrame func(text string)

	mu         sync.Mutex
	state      connState
	attempt    int
	userClosed bool
}

func newConnectionManager(tr transport.Transport, url string, auth Value, backoff BackoffConfig, bus *EventBus, logger *modular.ModuleLogger, onFrame func(string)) *connectionManager {
	return &connectionManager{
		url:     url,
		auth:    auth,
		backoff: backoff,
		bus:     bus,
		logger:  logger,
		tr:      tr,
		onFrame: onFrame,
		state:   stateClosed,
	}
}

func (c *connectionManager) getState() connState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connectionManager) setState(s connState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *connectionManager) isReady() bool {
	return c.getState() == stateReady
}

// run is the I/O loop: it dials, pumps transport events, and reconnects
// with backoff until the context is cancelled or Close is called by the
// user. It is the single function both RunForever (calling it directly)
// and Run (calling it on a worker goroutine) invoke.
func (c *connectionManager) run(ctx context.Context) {
	for {
		c.mu.Lock()
		closed := c.userClosed
		c.mu.Unlock()
		if closed {
			return
		}

		c.setState(stateOpening)
		c.bus.Emit("connecting")

		if err := c.tr.Connect(ctx, c.url); err != nil {
			c.bus.Emit("error", wrap(ErrConnectionFailed, err.Error()))
			if !c.waitRetry(ctx) {
				return
			}
			continue
		}

		closeEv, ok := c.pump(ctx)
		if !ok {
			return
		}

		c.mu.Lock()
		closed = c.userClosed
		c.state = stateClosed
		c.mu.Unlock()
		metrics.SessionReady.Set(0)
		c.bus.Emit("close", closeEv)

		if closed {
			return
		}

		c.bus.Emit("error", wrap(ErrConnectionLost, fmt.Sprintf("code=%d reason=%s", closeEv.Code, closeEv.Reason)))
		if !c.waitRetry(ctx) {
			return
		}
	}
}

// pump consumes transport events until a close is observed. ok is false
// only when the context was cancelled out from under us.
func (c *connectionManager) pump(ctx context.Context) (transport.Event, bool) {
	for {
		select {
		case <-ctx.Done():
			return transport.Event{}, false
		case ev, chanOK := <-c.tr.Events():
			if !chanOK {
				return transport.Event{Code: 1006, Reason: "transport events channel closed"}, true
			}
			switch ev.Kind {
			case transport.EventOpen:
				c.setState(stateOpen)
				c.bus.Emit("connection")
				if c.auth != nil {
					if f, err := frameAuth(c.auth).marshal(); err == nil {
						_ = c.tr.Send(f)
					}
				}
				c.becomeReady()
			case transport.EventMessage:
				c.onFrame(ev.Text)
			case transport.EventError:
				c.bus.Emit("error", ev.Err)
			case transport.EventClose:
				return ev, true
			}
		}
	}
}

func (c *connectionManager) becomeReady() {
	c.mu.Lock()
	c.state = stateReady
	c.attempt = 0
	c.mu.Unlock()
	metrics.SessionReady.Set(1)
	c.bus.Emit("ready")
}

// waitRetry sleeps for the next backoff delay and returns false if no
// further attempt should be made (retries exhausted or context done).
func (c *connectionManager) waitRetry(ctx context.Context) bool {
	c.mu.Lock()
	attempt := c.attempt
	c.attempt++
	maxRetries := c.backoff.MaxRetries
	c.mu.Unlock()

	if maxRetries > 0 && attempt >= maxRetries {
		c.bus.Emit("error", wrap(ErrConnectionFailed, "max retries exhausted"))
		return false
	}

	delay := c.backoff.delay(attempt)
	metrics.ReconnectAttemptsTotal.Inc()

	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// close begins a graceful, user-requested shutdown: it fires "closing"
// before tearing down the transport so handlers can flush final
// publishes, per spec section 4.2.
func (c *connectionManager) close() {
	c.mu.Lock()
	if c.userClosed {
		c.mu.Unlock()
		return
	}
	c.userClosed = true
	c.state = stateClosing
	c.mu.Unlock()

	c.bus.Emit("closing")
	metrics.SessionReady.Set(0)
	_ = c.tr.Close()
}
