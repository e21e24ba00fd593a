package rosbridge

import (
	"sync"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/rocos-io/rosbridge-go/metrics"
)

// pendingResult is what a correlated call_service request resolves to: either a values payload, or an error (timeout,
// connection lost, or a peer-reported failure).
type pendingResult struct {
	values Value
	err    error
}

type pendingEntry struct {
	id       string
	resultCh chan pendingResult
	once     sync.Once
}

func (p *pendingEntry) resolve(r pendingResult) {
	p.once.Do(func() { p.resultCh <- r })
}

// multiplexer is the protocol multiplexer (spec section 4.3): it owns the
// correlation-id table for outstanding requests, the topic subscriber
// lists, and the hosted-service handler table, and is the single point
// that turns a decoded inbound frame into a dispatched callback. It never
// touches the transport directly; connectionManager feeds it raw frame
// text via dispatch and it calls back out through send.
type multiplexer struct {
	send   func(text string) error
	bus    *EventBus
	logger *modular.ModuleLogger

	mu             sync.Mutex
	pending        map[string]*pendingEntry
	topicSubs      map[string]map[uint64]func(Value)
	nextSubID      uint64
	serviceServers map[string]func(Value) (Value, error)
}

func newMultiplexer(send func(string) error, bus *EventBus, logger *modular.ModuleLogger) *multiplexer {
	return &multiplexer{
		send:           send,
		bus:            bus,
		logger:         logger,
		pending:        make(map[string]*pendingEntry),
		topicSubs:      make(map[string]map[uint64]func(Value)),
		serviceServers: make(map[string]func(Value) (Value, error)),
	}
}

// registerSubscription adds a callback for topic and returns an unsubscribe
// function. The returned bool reports whether this is the first listener
// for the topic (the caller uses it to decide whether to send a wire
// "subscribe" frame at all, enforcing the at-most-one-subscribe invariant).
func (m *multiplexer) registerSubscription(topic string, cb func(Value)) (unregister func(), first bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, ok := m.topicSubs[topic]
	if !ok {
		subs = make(map[uint64]func(Value))
		m.topicSubs[topic] = subs
	}
	m.nextSubID++
	id := m.nextSubID
	subs[id] = cb
	first = len(subs) == 1

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if s, ok := m.topicSubs[topic]; ok {
			delete(s, id)
		}
	}, first
}

func (m *multiplexer) subscriberCount(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topicSubs[topic])
}

func (m *multiplexer) registerServiceServer(service string, handler func(Value) (Value, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serviceServers[service] = handler
}

func (m *multiplexer) unregisterServiceServer(service string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.serviceServers, service)
}

// await registers id as a pending correlated request and returns the
// channel its resolution will be delivered on. Callers are responsible
// for timing out and calling forget.
func (m *multiplexer) await(id string) <-chan pendingResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &pendingEntry{id: id, resultCh: make(chan pendingResult, 1)}
	m.pending[id] = p
	metrics.PendingRequests.Set(float64(len(m.pending)))
	return p.resultCh
}

func (m *multiplexer) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	metrics.PendingRequests.Set(float64(len(m.pending)))
}

// failAllPending resolves every outstanding request with err, called when
// the connection is lost so blocking callers do not hang forever.
func (m *multiplexer) failAllPending(err error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = make(map[string]*pendingEntry)
	metrics.PendingRequests.Set(0)
	m.mu.Unlock()

	for _, p := range pending {
		p.resolve(pendingResult{err: err})
	}
}

// dispatch decodes and routes one inbound frame. Malformed frames and
// unknown ops are reported on the "error" event and otherwise ignored —
// a single bad frame must never tear down the session (spec's InvalidFrame
// is explicitly non-fatal).
func (m *multiplexer) dispatch(data []byte) {
	// Cheaply sniff the op before paying for a full decode: a frame with no
	// string "op" field is rejected without ever allocating the decoded
	// map. Frames with an unknown op are decoded first and then reported.
	op, err := peekOp(data)
	if err != nil {
		m.bus.Emit("error", wrap(ErrInvalidFrame, err.Error()))
		return
	}
	metrics.FramesDispatchedTotal.WithLabelValues(op).Inc()

	frame, err := decodeFrame(data)
	if err != nil {
		m.bus.Emit("error", wrap(ErrInvalidFrame, err.Error()))
		return
	}

	switch op {
	case "publish":
		m.handlePublish(frame)
	case "service_response":
		m.handleServiceResponse(frame)
	case "call_service":
		m.handleCallService(frame)
	case "status":
		m.handleStatus(frame)
	case "set_level", "auth":
		// acknowledgements with nothing actionable on the client side
	default:
		m.bus.Emit("error", wrap(ErrInvalidFrame, "unknown op: "+op))
	}
}

func (m *multiplexer) handlePublish(frame map[string]Value) {
	topic, _ := frame["topic"].(string)
	msg := frame["msg"]

	m.mu.Lock()
	subs := make([]func(Value), 0, len(m.topicSubs[topic]))
	for _, cb := range m.topicSubs[topic] {
		subs = append(subs, cb)
	}
	m.mu.Unlock()

	for _, cb := range subs {
		m.safeInvoke(func() { cb(msg) })
	}
}

func (m *multiplexer) handleServiceResponse(frame map[string]Value) {
	id, _ := frame["id"].(string)
	if id == "" {
		return
	}

	m.mu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	metrics.PendingRequests.Set(float64(len(m.pending)))
	m.mu.Unlock()
	if !ok {
		return
	}

	result, _ := frame["result"].(bool)
	values := frame["values"]
	if result {
		p.resolve(pendingResult{values: values})
	} else {
		p.resolve(pendingResult{err: NewServiceFailed(values)})
	}
}

// handleCallService services an inbound request for a service this session
// has advertised. The handler runs synchronously and its panic is turned
// into a result=false service_response rather than crashing the dispatch
// loop, mirroring the recovered-callback discipline used throughout.
func (m *multiplexer) handleCallService(frame map[string]Value) {
	service, _ := frame["service"].(string)
	id, _ := frame["id"].(string)
	args := frame["args"]

	m.mu.Lock()
	handler, ok := m.serviceServers[service]
	m.mu.Unlock()
	if !ok {
		resp, _ := frameServiceResponse(id, service, Value(map[string]Value{}), false).marshal()
		_ = m.send(resp)
		return
	}

	values, ok := m.invokeServiceHandler(handler, args)
	resp, err := frameServiceResponse(id, service, values, ok).marshal()
	if err != nil {
		m.bus.Emit("error", wrap(ErrCallbackError, err.Error()))
		return
	}
	_ = m.send(resp)
}

// invokeServiceHandler runs handler with panic recovery, turning a panic
// into a result=false response with an empty values payload rather than
// letting it escape the dispatch loop.
func (m *multiplexer) invokeServiceHandler(handler func(Value) (Value, error), args Value) (values Value, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				logger := *m.logger
				logger.Errorf("[multiplexer] service handler panicked: %v", r)
			}
			m.bus.Emit("error", wrap(ErrCallbackError, "service handler panicked"))
			values, ok = map[string]Value{}, false
		}
	}()

	result, err := handler(args)
	if err != nil {
		return map[string]Value{"error": err.Error()}, false
	}
	return result, true
}

func (m *multiplexer) handleStatus(frame map[string]Value) {
	id, _ := frame["id"].(string)
	level, _ := frame["level"].(string)
	msg, _ := frame["msg"].(string)
	m.bus.Emit("status", level, msg, id)
	if id != "" {
		m.bus.Emit("status:"+id, level, msg)
	}
}

func (m *multiplexer) safeInvoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if m.logger != nil {
				logger := *m.logger
				logger.Errorf("[multiplexer] callback panicked: %v", r)
			}
			m.bus.Emit("error", wrap(ErrCallbackError, "subscription callback panicked"))
		}
	}()
	fn()
}
