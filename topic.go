package rosbridge

import (
	"sync"

	"golang.org/x/time/rate"
)

// Topic is a handle to one named rosbridge topic, shared by every caller
// that asks the session for the same name+type pair so that subscribe and
// advertise state is refcounted at the session level rather than per
// handle, the same registry-of-shared-handles approach the teacher uses
// for its publisher/subscriber maps keyed by topic name.
type Topic struct {
	session *RosSession
	name    string
	msgType string

	throttleMs  int
	queueLength int
	compression string
	limiter     *rate.Limiter

	mu              sync.Mutex
	isAdvertised    bool
	isSubscribed    bool
	unsubscribe     func()
	advertiseID     string
	subscribeID     string
	subscriberCnt   int
	userCallbackCnt int
}

// TopicOption configures a Topic at construction.
type TopicOption func(*Topic)

// WithThrottleRate sets the subscribe throttle_rate in milliseconds.
func WithThrottleRate(ms int) TopicOption { return func(t *Topic) { t.throttleMs = ms } }

// WithQueueLength sets the subscribe queue_length.
func WithQueueLength(n int) TopicOption { return func(t *Topic) { t.queueLength = n } }

// WithCompression requests "cbor" or "png" compression on subscribe.
func WithCompression(scheme string) TopicOption { return func(t *Topic) { t.compression = scheme } }

// WithLocalRateLimit drops delivered messages beyond ratePerSecond
// locally, as a client-side backstop independent of the server's
// throttle_rate (which the server may not honor for every message type).
func WithLocalRateLimit(ratePerSecond float64, burst int) TopicOption {
	return func(t *Topic) { t.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst) }
}

func newTopic(session *RosSession, name, msgType string, opts ...TopicOption) *Topic {
	t := &Topic{session: session, name: name, msgType: msgType}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the topic's wire name.
func (t *Topic) Name() string { return t.name }

// Type returns the topic's ROS message type string.
func (t *Topic) Type() string { return t.msgType }

// Subscribe registers cb to receive every message published on this
// topic. The wire "subscribe" frame is only sent once per topic, the
// first time any caller subscribes (invariant P2); subsequent
// subscribers share the existing wire subscription.
func (t *Topic) Subscribe(cb func(msg Value)) (unsubscribe func(), err error) {
	delivered := cb
	if t.limiter != nil {
		delivered = func(msg Value) {
			if t.limiter.Allow() {
				cb(msg)
			}
		}
	}
	off, first := t.session.mux.registerSubscription(t.name, delivered)

	t.mu.Lock()
	t.userCallbackCnt++
	if first {
		id := t.session.ids.next(kindSubscribe, t.name)
		t.subscribeID = id
		t.isSubscribed = true
	}
	needSend := first
	id := t.subscribeID
	t.mu.Unlock()

	if needSend {
		frame := frameSubscribe(id, t.name, t.msgType, t.throttleMs, t.queueLength, t.compression)
		t.session.registerResubscribe("subscribe:"+t.name, func() error {
			f, ferr := frame.marshal()
			if ferr != nil {
				return ferr
			}
			return t.session.sendFrame(f)
		})
		if sendErr := t.session.sendResubscribeNow("subscribe:" + t.name); sendErr != nil {
			off()
			return nil, sendErr
		}
	}

	return func() {
		off()
		t.mu.Lock()
		t.userCallbackCnt--
		remaining := t.userCallbackCnt
		t.mu.Unlock()
		if remaining <= 0 {
			t.unsubscribeWire()
		}
	}, nil
}

func (t *Topic) unsubscribeWire() {
	t.mu.Lock()
	if !t.isSubscribed {
		t.mu.Unlock()
		return
	}
	id := t.subscribeID
	t.isSubscribed = false
	t.mu.Unlock()

	t.session.forgetResubscribe("subscribe:" + t.name)
	f, err := frameUnsubscribe(id, t.name).marshal()
	if err != nil {
		return
	}
	_ = t.session.sendFrame(f)
}

// Advertise declares this session as a publisher of the topic. It is
// idempotent: calling it again while already advertised is a no-op.
func (t *Topic) Advertise() error {
	t.mu.Lock()
	if t.isAdvertised {
		t.mu.Unlock()
		return nil
	}
	id := t.session.ids.next(kindAdvertise, t.name)
	t.advertiseID = id
	t.isAdvertised = true
	t.mu.Unlock()

	t.session.registerResubscribe("advertise:"+t.name, func() error {
		f, ferr := frameAdvertise(id, t.name, t.msgType).marshal()
		if ferr != nil {
			return ferr
		}
		return t.session.sendFrame(f)
	})
	return t.session.sendResubscribeNow("advertise:" + t.name)
}

// Unadvertise withdraws this session's publisher declaration. It is not
// sent automatically on session close; the server reclaims advertisements
// for sockets that disconnect, so an explicit call is only needed to
// publish-then-stop while the connection stays open.
func (t *Topic) Unadvertise() error {
	t.mu.Lock()
	if !t.isAdvertised {
		t.mu.Unlock()
		return nil
	}
	id := t.advertiseID
	t.isAdvertised = false
	t.mu.Unlock()

	t.session.forgetResubscribe("advertise:" + t.name)
	f, err := frameUnadvertise(id, t.name).marshal()
	if err != nil {
		return err
	}
	return t.session.sendFrame(f)
}

// Publish advertises the topic if needed and sends one message on it.
func (t *Topic) Publish(msg Value) error {
	if err := t.Advertise(); err != nil {
		return err
	}
	f, err := framePublish(t.name, msg).marshal()
	if err != nil {
		return err
	}
	return t.session.sendFrame(f)
}

// SubscriberCount reports how many local callbacks are currently
// registered on this topic handle.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userCallbackCnt
}
