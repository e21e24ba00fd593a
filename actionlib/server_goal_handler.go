package actionlib

import (
	"sync"

	"github.com/rocos-io/rosbridge-go"
)

// ServerGoalHandler is a hosted goal's handle on the server side: it owns
// the goal's serverStateMachine and the session the status/result/
// feedback topics are published through, and exposes the accept/reject/
// succeed/abort/publish-feedback surface a user's goal callback drives.
type ServerGoalHandler struct {
	server *SimpleActionServer
	goalID string
	goal   rosbridge.Value

	mu sync.Mutex
	sm *serverStateMachine
}

func newServerGoalHandler(server *SimpleActionServer, goalID string, goal rosbridge.Value) *ServerGoalHandler {
	return &ServerGoalHandler{server: server, goalID: goalID, goal: goal, sm: newServerStateMachine()}
}

// GoalID returns the id of the goal this handler tracks.
func (h *ServerGoalHandler) GoalID() string { return h.goalID }

// Goal returns the decoded goal payload.
func (h *ServerGoalHandler) Goal() rosbridge.Value { return h.goal }

// Status returns the handler's current GoalStatus and status text.
func (h *ServerGoalHandler) Status() (GoalStatus, string) {
	return h.sm.getStatus()
}

func (h *ServerGoalHandler) setAccepted(text string) error {
	_, err := h.sm.transition(Accept, text)
	if err == nil {
		h.server.publishStatus()
	}
	return err
}

// SetSucceeded transitions the goal to SUCCEEDED and publishes result.
func (h *ServerGoalHandler) SetSucceeded(result rosbridge.Value, text string) error {
	if _, err := h.sm.transition(Succeed, text); err != nil {
		return err
	}
	h.server.publishStatus()
	return h.server.publishResult(h, result)
}

// SetAborted transitions the goal to ABORTED and publishes result.
func (h *ServerGoalHandler) SetAborted(result rosbridge.Value, text string) error {
	if _, err := h.sm.transition(Abort, text); err != nil {
		return err
	}
	h.server.publishStatus()
	return h.server.publishResult(h, result)
}

// SetCancelled transitions the goal to PREEMPTED and publishes result.
func (h *ServerGoalHandler) SetCancelled(result rosbridge.Value, text string) error {
	if _, err := h.sm.transition(Cancel, text); err != nil {
		return err
	}
	h.server.publishStatus()
	return h.server.publishResult(h, result)
}

// SetRejected transitions a still-pending goal to REJECTED.
func (h *ServerGoalHandler) SetRejected(text string) error {
	if _, err := h.sm.transition(Reject, text); err != nil {
		return err
	}
	h.server.publishStatus()
	return nil
}

// SetCancelRequested moves an active goal into PREEMPTING, acknowledging
// a cancel request without yet reporting the terminal result.
func (h *ServerGoalHandler) SetCancelRequested() error {
	if _, err := h.sm.transition(CancelRequest, ""); err != nil {
		return err
	}
	h.server.publishStatus()
	return nil
}

// PublishFeedback sends a feedback message for this goal.
func (h *ServerGoalHandler) PublishFeedback(feedback rosbridge.Value) error {
	return h.server.publishFeedback(h, feedback)
}
