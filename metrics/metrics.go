// Package metrics exposes the client-side Prometheus instrumentation for
// a rosbridge session: reconnect activity, outstanding correlated
// requests, and dispatched frame counts by opcode. The package-level
// gauge/counter style mirrors how the wider WebSocket-serving pack
// (odin-ws-server, polymarket-arb) instruments their connection
// managers; this is the client-side half of that same ambient concern.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ReconnectAttemptsTotal counts every reconnect attempt scheduled
	// after a failed dial or an unexpected close.
	ReconnectAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rosbridge_client",
		Name:      "reconnect_attempts_total",
		Help:      "Number of reconnect attempts scheduled after a failed dial or an unexpected close.",
	})

	// PendingRequests reports the current number of outstanding
	// call_service requests awaiting a service_response.
	PendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rosbridge_client",
		Name:      "pending_requests",
		Help:      "Outstanding call_service requests awaiting a reply.",
	})

	// FramesDispatchedTotal counts inbound frames dispatched by the
	// multiplexer, labeled by opcode.
	FramesDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rosbridge_client",
		Name:      "frames_dispatched_total",
		Help:      "Inbound frames dispatched by the protocol multiplexer, by op.",
	}, []string{"op"})

	// SessionReady reports 1 while the session is ready, 0 otherwise.
	SessionReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "rosbridge_client",
		Name:      "session_ready",
		Help:      "1 while the rosbridge session is ready, 0 otherwise.",
	})
)

func init() {
	prometheus.MustRegister(ReconnectAttemptsTotal, PendingRequests, FramesDispatchedTotal, SessionReady)
}
