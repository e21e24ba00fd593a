package rosbridge

import (
	"sync"

	modular "github.com/edwinhayes/logrus-modular"
)

// listener is one registered handler for a named event.
type listener struct {
	id   uint64
	fn   func(args ...Value)
	once bool
}

// EventBus is a named-event pub/sub used both internally (the connection
// manager and multiplexer raise lifecycle and status events on it) and as
// the library's public observation surface. Delivery is synchronous in the
// caller's goroutine; a panicking listener is recovered and reported on
// the "error" event without blocking the remaining listeners, matching the
// callback-set pattern the teacher applies to its subscriber and action
// client handler lists.
type EventBus struct {
	mu        sync.Mutex
	listeners map[string][]*listener
	nextID    uint64
	logger    *modular.ModuleLogger
}

func newEventBus(logger *modular.ModuleLogger) *EventBus {
	return &EventBus{
		listeners: make(map[string][]*listener),
		logger:    logger,
	}
}

// On registers a persistent listener for event. The returned function
// removes it.
func (b *EventBus) On(event string, fn func(args ...Value)) (off func()) {
	return b.add(event, fn, false)
}

// Once registers a listener that is removed after its first invocation.
func (b *EventBus) Once(event string, fn func(args ...Value)) (off func()) {
	return b.add(event, fn, true)
}

func (b *EventBus) add(event string, fn func(args ...Value), once bool) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	l := &listener{id: id, fn: fn, once: once}
	b.listeners[event] = append(b.listeners[event], l)
	b.mu.Unlock()

	return func() { b.remove(event, id) }
}

func (b *EventBus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.listeners[event]
	for i, l := range ls {
		if l.id == id {
			b.listeners[event] = append(ls[:i], ls[i+1:]...)
			return
		}
	}
}

// Emit delivers args to every listener registered for event, in
// registration order. One-shot listeners are dropped after firing.
func (b *EventBus) Emit(event string, args ...Value) {
	b.mu.Lock()
	ls := make([]*listener, len(b.listeners[event]))
	copy(ls, b.listeners[event])

	remaining := make([]*listener, 0, len(b.listeners[event]))
	for _, l := range b.listeners[event] {
		if !l.once {
			remaining = append(remaining, l)
		}
	}
	b.listeners[event] = remaining
	b.mu.Unlock()

	for _, l := range ls {
		b.safeCall(event, l, args)
	}
}

func (b *EventBus) safeCall(event string, l *listener, args []Value) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				logger := *b.logger
				logger.Errorf("[EventBus] listener for %q panicked: %v", event, r)
			}
			if event != "error" {
				b.Emit("error", wrap(ErrCallbackError, "event listener panicked"))
			}
		}
	}()
	l.fn(args...)
}
