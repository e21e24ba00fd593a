package actionlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStateMachineWaitingForGoalAckToPending(t *testing.T) {
	sm := newClientStateMachine()
	transitions, err := sm.getTransitions(StatusPending)
	require.NoError(t, err)
	require.Equal(t, 1, transitions.Len())
	assert.Equal(t, Pending, transitions.Front().Value.(CommState))
}

func TestClientStateMachineRejectedFromWaitingForGoalAckWalksThroughPending(t *testing.T) {
	sm := newClientStateMachine()
	transitions, err := sm.getTransitions(StatusRejected)
	require.NoError(t, err)
	require.Equal(t, 2, transitions.Len())
	e := transitions.Front()
	assert.Equal(t, Pending, e.Value.(CommState))
	e = e.Next()
	assert.Equal(t, WaitingForCancelAck, e.Value.(CommState))
}

func TestClientStateMachineRejectsInvalidTransitionFromActive(t *testing.T) {
	sm := newClientStateMachine()
	sm.setState(Active)
	_, err := sm.getTransitions(StatusPending)
	assert.Error(t, err)
}

func TestGoalNotDoneUntilResultObserved(t *testing.T) {
	h := newClientGoalHandler(nil, "goal-1")
	h.updateStatus(StatusSucceeded, "done")
	assert.False(t, h.IsDone(), "status alone must not be sufficient to report done")

	h.updateResult(map[string]any{"ok": true})
	assert.True(t, h.IsDone())
}

func TestGoalDoneFiresTransitionOnceWhenResultArrivesAfterStatus(t *testing.T) {
	transitions := 0
	h := newClientGoalHandler(nil, "goal-2")
	h.transitionCb = func(*ClientGoalHandler) { transitions++ }

	h.updateStatus(StatusActive, "")
	before := transitions
	h.updateStatus(StatusSucceeded, "")
	assert.False(t, h.IsDone())
	assert.Equal(t, before+1, transitions, "WaitingForResult transition should fire once")

	h.updateResult(map[string]any{})
	assert.True(t, h.IsDone())
	assert.Equal(t, CommState(Done), h.CommState())
}

func TestServerStateMachinePendingAcceptToActive(t *testing.T) {
	sm := newServerStateMachine()
	status, err := sm.transition(Accept, "accepted")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)
}

func TestServerStateMachineRejectsEventFromTerminalState(t *testing.T) {
	sm := newServerStateMachine()
	_, err := sm.transition(Reject, "no thanks")
	require.NoError(t, err)
	_, err = sm.transition(Accept, "too late")
	assert.Error(t, err)
}

func TestServerStateMachineActiveCancelRequestThenCancel(t *testing.T) {
	sm := newServerStateMachine()
	_, err := sm.transition(Accept, "")
	require.NoError(t, err)
	status, err := sm.transition(CancelRequest, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPreempting, status)

	status, err = sm.transition(Cancel, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPreempted, status)
}

func TestGoalIDGeneratorProducesUniqueIDs(t *testing.T) {
	g := newGoalIDGenerator()
	a := g.generateID()
	b := g.generateID()
	assert.NotEqual(t, a, b)
}
