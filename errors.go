package rosbridge

import "github.com/pkg/errors"

// ErrorKind classifies the engine's error taxonomy (spec section 7).
type ErrorKind uint8

const (
	// KindConnectionFailed means the transport refused to open.
	KindConnectionFailed ErrorKind = iota
	// KindConnectionLost means the transport closed while operations were in flight.
	KindConnectionLost
	// KindNotReady means a run-mode readiness wait expired.
	KindNotReady
	// KindTimeout means a per-operation deadline elapsed.
	KindTimeout
	// KindServiceFailed means the peer returned result=false; carries the Values payload.
	KindServiceFailed
	// KindInvalidFrame means malformed inbound JSON; logged and dropped.
	KindInvalidFrame
	// KindCallbackError means a user callback raised; surfaced via the error event.
	KindCallbackError
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionFailed:
		return "ConnectionFailed"
	case KindConnectionLost:
		return "ConnectionLost"
	case KindNotReady:
		return "NotReady"
	case KindTimeout:
		return "Timeout"
	case KindServiceFailed:
		return "ServiceFailed"
	case KindInvalidFrame:
		return "InvalidFrame"
	case KindCallbackError:
		return "CallbackError"
	default:
		return "Unknown"
	}
}

// Error is the typed failure every blocking API in this package returns.
// Non-blocking variants deliver the same type through their callback/error argument.
type Error struct {
	Kind   ErrorKind
	Values Value // populated for KindServiceFailed
	msg    string
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.msg
}

// Is makes errors.Is(err, ErrTimeout) etc. match on kind, regardless of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrConnectionFailed is reported on the "error" event when a dial fails,
	// when reconnect retries are exhausted, and when a resubscription replay fails.
	ErrConnectionFailed = &Error{Kind: KindConnectionFailed, msg: "transport refused to open"}
	// ErrConnectionLost is returned to every pending operation when the session disconnects.
	ErrConnectionLost = &Error{Kind: KindConnectionLost, msg: "connection lost"}
	// ErrNotReady is returned by Run when the readiness wait expires.
	ErrNotReady = &Error{Kind: KindNotReady, msg: "session did not become ready in time"}
	// ErrTimeout is returned when a blocking call's deadline elapses.
	ErrTimeout = &Error{Kind: KindTimeout, msg: "operation timed out"}
	// ErrInvalidFrame marks an inbound frame that failed to parse.
	ErrInvalidFrame = &Error{Kind: KindInvalidFrame, msg: "malformed inbound frame"}
	// ErrCallbackError marks a panic recovered from a user-supplied callback.
	ErrCallbackError = &Error{Kind: KindCallbackError, msg: "callback raised"}
)

// NewServiceFailed builds the KindServiceFailed error carrying the peer's values payload.
func NewServiceFailed(values Value) *Error {
	return &Error{Kind: KindServiceFailed, Values: values, msg: "peer returned result=false"}
}

func wrap(base *Error, context string) error {
	return errors.Wrap(base, context)
}
