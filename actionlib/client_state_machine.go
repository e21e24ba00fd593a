package actionlib

import (
	"container/list"
	"fmt"
	"sync"
)

// CommState is the client-side communication state for one goal, the same
// nine-state lattice actionlib clients in every language implement.
type CommState uint8

const (
	WaitingForGoalAck CommState = iota
	Pending
	Active
	WaitingForResult
	WaitingForCancelAck
	Recalling
	Preempting
	Done
	Lost
)

func (cs CommState) String() string {
	switch cs {
	case WaitingForGoalAck:
		return "WAITING_FOR_GOAL_ACK"
	case Pending:
		return "PENDING"
	case Active:
		return "ACTIVE"
	case WaitingForResult:
		return "WAITING_FOR_RESULT"
	case WaitingForCancelAck:
		return "WAITING_FOR_CANCEL_ACK"
	case Recalling:
		return "RECALLING"
	case Preempting:
		return "PREEMPTING"
	case Done:
		return "DONE"
	case Lost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

type clientStateMachine struct {
	mu         sync.RWMutex
	state      CommState
	statusText string
}

func newClientStateMachine() *clientStateMachine {
	return &clientStateMachine{state: WaitingForGoalAck}
}

func (sm *clientStateMachine) getState() CommState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

func (sm *clientStateMachine) setState(s CommState) {
	sm.mu.Lock()
	sm.state = s
	sm.mu.Unlock()
}

// getTransitions returns the sequence of intermediate CommStates to walk
// through given an incoming GoalStatus, starting from the machine's
// current state. This is the exact lattice actionlib's client state
// machine implements: most incoming statuses imply more than one logical
// transition (e.g. a REJECTED received while still WaitingForGoalAck
// passes through Pending first).
func (sm *clientStateMachine) getTransitions(status GoalStatus) (transitions list.List, err error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	switch sm.state {
	case WaitingForGoalAck:
		switch status {
		case StatusPending:
			transitions.PushBack(Pending)
		case StatusActive:
			transitions.PushBack(Active)
		case StatusRejected:
			transitions.PushBack(Pending)
			transitions.PushBack(WaitingForCancelAck)
		case StatusRecalling:
			transitions.PushBack(Pending)
			transitions.PushBack(Recalling)
		case StatusRecalled:
			transitions.PushBack(Pending)
			transitions.PushBack(WaitingForResult)
		case StatusPreempted:
			transitions.PushBack(Active)
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusSucceeded:
			transitions.PushBack(Active)
			transitions.PushBack(WaitingForResult)
		case StatusAborted:
			transitions.PushBack(Active)
			transitions.PushBack(WaitingForResult)
		case StatusPreempting:
			transitions.PushBack(Active)
			transitions.PushBack(Preempting)
		}

	case Pending:
		switch status {
		case StatusPending:
		case StatusActive:
			transitions.PushBack(Active)
		case StatusRejected:
			transitions.PushBack(WaitingForResult)
		case StatusRecalling:
			transitions.PushBack(Recalling)
		case StatusRecalled:
			transitions.PushBack(Recalling)
			transitions.PushBack(WaitingForResult)
		case StatusPreempted:
			transitions.PushBack(Active)
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusSucceeded:
			transitions.PushBack(Active)
			transitions.PushBack(WaitingForResult)
		case StatusAborted:
			transitions.PushBack(Active)
			transitions.PushBack(WaitingForResult)
		case StatusPreempting:
			transitions.PushBack(Active)
			transitions.PushBack(Preempting)
		}

	case Active:
		switch status {
		case StatusPending:
			err = fmt.Errorf("invalid transition from Active to Pending")
		case StatusActive:
		case StatusRejected:
			err = fmt.Errorf("invalid transition from Active to Rejected")
		case StatusRecalling:
			err = fmt.Errorf("invalid transition from Active to Recalling")
		case StatusRecalled:
			err = fmt.Errorf("invalid transition from Active to Recalled")
		case StatusPreempted:
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusSucceeded:
			transitions.PushBack(WaitingForResult)
		case StatusAborted:
			transitions.PushBack(WaitingForResult)
		case StatusPreempting:
			transitions.PushBack(Preempting)
		}

	case WaitingForResult:
		switch status {
		case StatusPending:
			err = fmt.Errorf("invalid transition from WaitingForResult to Pending")
		case StatusActive:
		case StatusRejected:
		case StatusRecalling:
			err = fmt.Errorf("invalid transition from WaitingForResult to Recalling")
		case StatusRecalled:
		case StatusPreempted:
		case StatusSucceeded:
		case StatusAborted:
		case StatusPreempting:
			err = fmt.Errorf("invalid transition from WaitingForResult to Preempting")
		}

	case WaitingForCancelAck:
		switch status {
		case StatusPending:
		case StatusActive:
		case StatusRejected:
			transitions.PushBack(WaitingForResult)
		case StatusRecalling:
			transitions.PushBack(Recalling)
		case StatusRecalled:
			transitions.PushBack(Recalling)
			transitions.PushBack(WaitingForResult)
		case StatusPreempted:
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusSucceeded:
			transitions.PushBack(Recalling)
			transitions.PushBack(WaitingForResult)
		case StatusAborted:
			transitions.PushBack(Recalling)
			transitions.PushBack(WaitingForResult)
		case StatusPreempting:
			transitions.PushBack(Preempting)
		}

	case Recalling:
		switch status {
		case StatusPending:
			err = fmt.Errorf("invalid transition from Recalling to Pending")
		case StatusActive:
			err = fmt.Errorf("invalid transition from Recalling to Active")
		case StatusRejected:
			transitions.PushBack(WaitingForResult)
		case StatusRecalling:
		case StatusRecalled:
			transitions.PushBack(WaitingForResult)
		case StatusPreempted:
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusSucceeded:
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusAborted:
			transitions.PushBack(Preempting)
			transitions.PushBack(WaitingForResult)
		case StatusPreempting:
			transitions.PushBack(Preempting)
		}

	case Preempting:
		switch status {
		case StatusPending:
			err = fmt.Errorf("invalid transition from Preempting to Pending")
		case StatusActive:
			err = fmt.Errorf("invalid transition from Preempting to Active")
		case StatusRejected:
			err = fmt.Errorf("invalid transition from Preempting to Rejected")
		case StatusRecalling:
			err = fmt.Errorf("invalid transition from Preempting to Recalling")
		case StatusRecalled:
			err = fmt.Errorf("invalid transition from Preempting to Recalled")
		case StatusPreempted:
			transitions.PushBack(WaitingForResult)
		case StatusSucceeded:
			transitions.PushBack(WaitingForResult)
		case StatusAborted:
			transitions.PushBack(WaitingForResult)
		case StatusPreempting:
		}

	case Done:
		switch status {
		case StatusPending:
			err = fmt.Errorf("invalid transition from Done to Pending")
		case StatusActive:
			err = fmt.Errorf("invalid transition from Done to Active")
		case StatusRejected:
		case StatusRecalling:
			err = fmt.Errorf("invalid transition from Done to Recalling")
		case StatusRecalled:
		case StatusPreempted:
		case StatusSucceeded:
		case StatusAborted:
		case StatusPreempting:
			err = fmt.Errorf("invalid transition from Done to Preempting")
		}
	}

	return
}
