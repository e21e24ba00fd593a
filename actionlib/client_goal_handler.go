package actionlib

import (
	"sync"

	"github.com/rocos-io/rosbridge-go"
)

// ClientGoalHandler tracks one goal's lifecycle from the calling client's
// side: its CommState, the most recent GoalStatus observed, and the
// result payload once it arrives. A goal is reported Done only once both
// a terminal status AND a result have been observed (invariant: status
// alone is not sufficient, since the status array can tick to a terminal
// code before the paired result message is published).
type ClientGoalHandler struct {
	client *ActionClient
	goalID string

	mu             sync.Mutex
	sm             *clientStateMachine
	status         GoalStatus
	statusText     string
	result         rosbridge.Value
	resultObserved bool

	transitionCb func(*ClientGoalHandler)
	feedbackCb   func(*ClientGoalHandler, rosbridge.Value)
}

func newClientGoalHandler(client *ActionClient, goalID string) *ClientGoalHandler {
	return &ClientGoalHandler{client: client, goalID: goalID, sm: newClientStateMachine()}
}

// GoalID returns the id this handler tracks.
func (h *ClientGoalHandler) GoalID() string { return h.goalID }

// CommState returns the handler's current client-side communication state.
func (h *ClientGoalHandler) CommState() CommState { return h.sm.getState() }

// GoalStatus returns the most recently observed numeric status.
func (h *ClientGoalHandler) GoalStatus() GoalStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// GoalStatusText returns the most recently observed status text.
func (h *ClientGoalHandler) GoalStatusText() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusText
}

// IsDone reports whether this goal has reached both a terminal status and
// an observed result.
func (h *ClientGoalHandler) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.terminal() && h.resultObserved
}

// Result returns the last observed result payload, or nil if none has
// arrived yet.
func (h *ClientGoalHandler) Result() rosbridge.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// updateStatus advances the CommState machine through every intermediate
// transition the incoming status implies and fires the transition
// callback once per transition, the same walk-the-list behavior the
// reference client state machine performs.
func (h *ClientGoalHandler) updateStatus(status GoalStatus, text string) {
	h.mu.Lock()
	h.status = status
	h.statusText = text
	h.mu.Unlock()

	transitions, err := h.sm.getTransitions(status)
	if err != nil {
		return
	}
	for e := transitions.Front(); e != nil; e = e.Next() {
		next := e.Value.(CommState)
		h.sm.setState(next)
		if h.transitionCb != nil {
			h.transitionCb(h)
		}
	}

	h.checkDone()
}

func (h *ClientGoalHandler) updateResult(result rosbridge.Value) {
	h.mu.Lock()
	h.result = result
	h.resultObserved = true
	h.mu.Unlock()

	if h.sm.getState() != Done {
		h.sm.setState(WaitingForResult)
	}
	h.checkDone()
}

func (h *ClientGoalHandler) updateFeedback(feedback rosbridge.Value) {
	if h.feedbackCb != nil {
		h.feedbackCb(h, feedback)
	}
}

// checkDone transitions to Done and fires the final transition callback
// once both halves of the terminal condition are satisfied.
func (h *ClientGoalHandler) checkDone() {
	h.mu.Lock()
	ready := h.status.terminal() && h.resultObserved
	h.mu.Unlock()

	if !ready || h.sm.getState() == Done {
		return
	}
	h.sm.setState(Done)
	if h.transitionCb != nil {
		h.transitionCb(h)
	}
}
