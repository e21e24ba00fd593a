package rosbridge

import (
	"time"
)

const defaultServiceTimeout = 10 * time.Second

// ServiceClient calls a named rosbridge service. Every session call to
// Service with the same name shares nothing — unlike topics, each
// ServiceClient is a lightweight value with no wire-visible registration
// step, matching rosbridge's call_service semantics where no advertise is
// required to call.
type ServiceClient struct {
	session     *RosSession
	name        string
	serviceType string
	compression string
	timeout     time.Duration
}

// ServiceOption configures a ServiceClient.
type ServiceOption func(*serviceOpts)

type serviceOpts struct {
	compression string
	timeout     time.Duration
}

// WithServiceCompression requests compression on call_service frames.
func WithServiceCompression(scheme string) ServiceOption {
	return func(o *serviceOpts) { o.compression = scheme }
}

// WithServiceTimeout overrides the default blocking-call timeout.
func WithServiceTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOpts) { o.timeout = d }
}

// Service returns a client for the named rosbridge service.
func (s *RosSession) Service(name, serviceType string, opts ...ServiceOption) *ServiceClient {
	o := serviceOpts{timeout: defaultServiceTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &ServiceClient{session: s, name: name, serviceType: serviceType, compression: o.compression, timeout: o.timeout}
}

// Call invokes the service synchronously with the client's default
// timeout.
func (c *ServiceClient) Call(args Value) (Value, error) {
	return c.CallWithTimeout(args, c.timeout)
}

// CallWithTimeout invokes the service synchronously, returning ErrTimeout
// if no service_response arrives within d. doCall runs on its own
// goroutine so the timeout actually races the wait instead of following
// it; on expiry the pending correlation entry is forgotten so a late
// reply has nothing left to deliver to.
func (c *ServiceClient) CallWithTimeout(args Value, d time.Duration) (Value, error) {
	resultCh := make(chan pendingResult, 1)
	idCh := make(chan string, 1)
	go c.doCall(args, idCh, func(v Value, err error) { resultCh <- pendingResult{values: v, err: err} })

	select {
	case r := <-resultCh:
		return r.values, r.err
	case <-time.After(d):
		if id := <-idCh; id != "" {
			c.session.mux.forget(id)
		}
		return nil, wrap(ErrTimeout, "call_service \""+c.name+"\" timed out")
	}
}

// CallAsync invokes the service without blocking; cb is called once, on a
// goroutine CallAsync starts, when the reply arrives, the send fails, or
// the connection drops. CallAsync applies no timeout.
func (c *ServiceClient) CallAsync(args Value, cb func(Value, error)) {
	go c.doCall(args, make(chan string, 1), cb)
}

// doCall sends one call_service request and blocks until its reply (or
// the connection dropping) resolves it. idCh receives the correlation id
// as soon as it's allocated (or "" if the frame could never be sent), so
// a caller racing a timeout against doCall can still forget the pending
// entry.
func (c *ServiceClient) doCall(args Value, idCh chan string, cb func(Value, error)) {
	id := c.session.ids.next(kindCallService, c.name)
	resultCh := c.session.mux.await(id)

	frame, err := frameCallService(id, c.name, args, c.compression).marshal()
	if err != nil {
		c.session.mux.forget(id)
		idCh <- ""
		cb(nil, err)
		return
	}
	if err := c.session.sendFrame(frame); err != nil {
		c.session.mux.forget(id)
		idCh <- ""
		cb(nil, err)
		return
	}

	idCh <- id
	r := <-resultCh
	cb(r.values, r.err)
}

// ServiceServer hosts a handler for a named rosbridge service, so that
// this session answers call_service requests other clients issue against
// it. handler runs on the dispatch goroutine; a returned error produces a
// result=false response carrying {"error": <message>}.
type ServiceServer struct {
	session *RosSession
	name    string
}

// AdvertiseService registers handler for name and sends the wire
// advertise_service frame (replayed on reconnect, same as topic
// advertisements).
func (s *RosSession) AdvertiseService(name, serviceType string, handler func(Value) (Value, error)) (*ServiceServer, error) {
	s.mux.registerServiceServer(name, handler)
	s.registerResubscribe("advertise_service:"+name, func() error {
		f, err := frameAdvertiseService(name, serviceType).marshal()
		if err != nil {
			return err
		}
		return s.sendFrame(f)
	})
	if err := s.sendResubscribeNow("advertise_service:" + name); err != nil {
		s.mux.unregisterServiceServer(name)
		s.forgetResubscribe("advertise_service:" + name)
		return nil, err
	}
	return &ServiceServer{session: s, name: name}, nil
}

// Unadvertise withdraws this service's advertisement and stops handling
// requests for it.
func (ss *ServiceServer) Unadvertise() error {
	ss.session.mux.unregisterServiceServer(ss.name)
	ss.session.forgetResubscribe("advertise_service:" + ss.name)
	f, err := frameUnadvertiseService(ss.name).marshal()
	if err != nil {
		return err
	}
	return ss.session.sendFrame(f)
}
