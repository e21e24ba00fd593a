package rosbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	modular "github.com/edwinhayes/logrus-modular"
	"github.com/sirupsen/logrus"

	"github.com/rocos-io/rosbridge-go/transport"
)

// Option configures a RosSession at construction, the same functional
// options pattern the teacher uses for its node and publisher
// constructors.
type Option func(*sessionConfig)

type sessionConfig struct {
	secure      bool
	auth        Value
	backoff     BackoffConfig
	logger      *logrus.Logger
	transport   transport.Transport
	dialTimeout time.Duration
}

// WithSecure dials wss:// instead of ws://.
func WithSecure() Option { return func(c *sessionConfig) { c.secure = true } }

// WithAuth sends an "auth" frame with the given fields immediately after
// every successful connect (spec section 4.3).
func WithAuth(auth Value) Option { return func(c *sessionConfig) { c.auth = auth } }

// WithBackoff overrides the reconnect backoff schedule.
func WithBackoff(b BackoffConfig) Option { return func(c *sessionConfig) { c.backoff = b } }

// WithLogger supplies a preconfigured logrus logger; components get their
// own named sub-loggers from it via logrus-modular, the same layering the
// teacher applies to its own ros.Node logger.
func WithLogger(l *logrus.Logger) Option { return func(c *sessionConfig) { c.logger = l } }

// WithTransport overrides the transport implementation, used by tests to
// inject transport.Fake.
func WithTransport(tr transport.Transport) Option { return func(c *sessionConfig) { c.transport = tr } }

// WithDialTimeout bounds the WebSocket handshake.
func WithDialTimeout(d time.Duration) Option { return func(c *sessionConfig) { c.dialTimeout = d } }

// RosSession is the top-level handle to one rosbridge connection: it
// aggregates the connection manager, protocol multiplexer, topic/service
// registries, and the public event bus. One RosSession corresponds to one
// rosbridge server socket, just as one ros.Node corresponds to one TCPROS
// participant in the teacher.
type RosSession struct {
	url    string
	bus    *EventBus
	ids    *idAllocator
	mux    *multiplexer
	conn   *connectionManager
	logger *modular.ModuleLogger

	mu          sync.Mutex
	topics      map[string]*Topic
	resubOrder  []string
	resubByKey  map[string]func() error
	closed      bool
	cancelRun   context.CancelFunc
	runFinished chan struct{}
}

// NewSession constructs a session targeting host:port but does not dial
// until Run or RunForever is called.
func NewSession(host string, port int, opts ...Option) *RosSession {
	cfg := sessionConfig{
		backoff:     DefaultBackoffConfig(),
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.logger == nil {
		cfg.logger = logrus.New()
	}
	root := modular.NewRootLogger(cfg.logger)
	sessionLogger := root.GetModuleLogger()

	scheme := "ws"
	if cfg.secure {
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, host, port)

	tr := cfg.transport
	if tr == nil {
		tr = transport.NewWebSocket(transport.WithHandshakeTimeout(cfg.dialTimeout))
	}

	s := &RosSession{
		url:        url,
		bus:        newEventBus(&sessionLogger),
		ids:        newIDAllocator(),
		logger:     &sessionLogger,
		topics:     make(map[string]*Topic),
		resubByKey: make(map[string]func() error),
	}
	s.mux = newMultiplexer(s.sendFrameRaw, s.bus, &sessionLogger)
	s.conn = newConnectionManager(tr, url, cfg.auth, cfg.backoff, s.bus, &sessionLogger, func(text string) { s.mux.dispatch([]byte(text)) })

	s.bus.On("ready", func(args ...Value) { s.replayResubscriptions() })
	s.bus.On("close", func(args ...Value) { s.mux.failAllPending(ErrConnectionLost) })

	return s
}

// Run dials in the background and blocks until the session becomes ready
// or timeout elapses (default 10s), returning ErrNotReady on expiry.
func (s *RosSession) Run(timeout ...time.Duration) error {
	wait := 10 * time.Second
	if len(timeout) > 0 {
		wait = timeout[0]
	}

	readyCh := make(chan struct{}, 1)
	off := s.bus.Once("ready", func(args ...Value) { readyCh <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelRun = cancel
	s.runFinished = make(chan struct{})
	finished := s.runFinished
	s.mu.Unlock()

	go func() {
		defer close(finished)
		s.conn.run(ctx)
	}()

	select {
	case <-readyCh:
		return nil
	case <-time.After(wait):
		off()
		return ErrNotReady
	}
}

// RunForever dials and blocks the calling goroutine for the life of the
// session, returning only once Close is called or ctx is cancelled.
func (s *RosSession) RunForever(ctx context.Context) {
	s.mu.Lock()
	_, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.mu.Unlock()
	s.conn.run(ctx)
}

// Close gracefully shuts down the session: it emits "closing", closes the
// transport, and cancels the run loop's context.
func (s *RosSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancelRun
	finished := s.runFinished
	s.mu.Unlock()

	s.conn.close()
	if cancel != nil {
		cancel()
	}
	if finished != nil {
		<-finished
	}
	return nil
}

// IsConnected reports whether the session is currently ready to send and
// receive frames.
func (s *RosSession) IsConnected() bool {
	return s.conn.isReady()
}

// On registers a persistent listener for a session lifecycle event
// ("connecting", "connection", "ready", "close", "closing", "error",
// "status", or "status:<id>").
func (s *RosSession) On(event string, fn func(args ...Value)) (off func()) {
	return s.bus.On(event, fn)
}

// Once registers a one-shot listener.
func (s *RosSession) Once(event string, fn func(args ...Value)) (off func()) {
	return s.bus.Once(event, fn)
}

// Topic returns the shared handle for name+msgType, creating it on first
// use so repeated calls refcount a single wire subscription/advertisement
// (invariant P2).
func (s *RosSession) Topic(name, msgType string, opts ...TopicOption) *Topic {
	key := name + "|" + msgType
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.topics[key]; ok {
		return t
	}
	t := newTopic(s, name, msgType, opts...)
	s.topics[key] = t
	return t
}

func (s *RosSession) sendFrame(text string) error {
	return s.sendFrameRaw(text)
}

func (s *RosSession) sendFrameRaw(text string) error {
	if !s.conn.isReady() {
		return wrap(ErrNotReady, "session is not connected")
	}
	return s.conn.tr.Send(text)
}

// registerResubscribe records an intent to be replayed, in insertion
// order, on every successful reconnect (invariant P3). Re-registering an
// existing key overwrites its send function without changing its
// position, matching "first declared, first replayed" ordering.
func (s *RosSession) registerResubscribe(key string, send func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resubByKey[key]; !exists {
		s.resubOrder = append(s.resubOrder, key)
	}
	s.resubByKey[key] = send
}

func (s *RosSession) forgetResubscribe(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resubByKey, key)
	for i, k := range s.resubOrder {
		if k == key {
			s.resubOrder = append(s.resubOrder[:i], s.resubOrder[i+1:]...)
			break
		}
	}
}

// sendResubscribeNow fires a single intent immediately, used when a topic
// registers its first subscribe/advertise while already connected rather
// than waiting for the next reconnect.
func (s *RosSession) sendResubscribeNow(key string) error {
	s.mu.Lock()
	send, ok := s.resubByKey[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if !s.conn.isReady() {
		return nil
	}
	return send()
}

func (s *RosSession) replayResubscriptions() {
	s.mu.Lock()
	order := make([]string, len(s.resubOrder))
	copy(order, s.resubOrder)
	fns := make([]func() error, 0, len(order))
	for _, k := range order {
		fns = append(fns, s.resubByKey[k])
	}
	s.mu.Unlock()

	for i, fn := range fns {
		if fn == nil {
			continue
		}
		if err := fn(); err != nil {
			s.bus.Emit("error", wrap(ErrConnectionFailed, fmt.Sprintf("resubscribe %q failed: %v", order[i], err)))
		}
	}
}
