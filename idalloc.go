package rosbridge

import (
	"fmt"
	"sync/atomic"
)

// streamKind labels which logical stream an allocated id belongs to. The
// label is informational only (spec section 4.3): uniqueness within the
// session is the sole requirement, the same way the teacher's goal id
// generator prefixes ids with the node name for readability, not
// correctness.
type streamKind string

const (
	kindSubscribe       streamKind = "subscribe"
	kindAdvertise       streamKind = "advertise"
	kindCallService     streamKind = "call_service"
	kindAdvertiseServ   streamKind = "advertise_service"
	kindParam           streamKind = "param"
)

// idAllocator hands out monotonically increasing, session-unique
// correlation identifiers of the form "<stream-kind>:<name>:<n>".
type idAllocator struct {
	counter uint64
}

func newIDAllocator() *idAllocator {
	return &idAllocator{}
}

func (a *idAllocator) next(kind streamKind, name string) string {
	n := atomic.AddUint64(&a.counter, 1)
	return fmt.Sprintf("%s:%s:%d", kind, name, n)
}
