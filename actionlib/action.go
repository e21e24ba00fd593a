// Package actionlib implements the actionlib client and server halves of
// the rosbridge actionlib_msgs protocol: goal/cancel/status/feedback/result
// topics multiplexed over one rosbridge.RosSession, plus the client and
// server goal state machines that interpret the numeric GoalStatus stream.
package actionlib

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rocos-io/rosbridge-go"
)

// GoalStatus mirrors actionlib_msgs/GoalStatus's numeric status codes.
type GoalStatus uint8

const (
	StatusPending    GoalStatus = 0
	StatusActive     GoalStatus = 1
	StatusPreempted  GoalStatus = 2
	StatusSucceeded  GoalStatus = 3
	StatusAborted    GoalStatus = 4
	StatusRejected   GoalStatus = 5
	StatusPreempting GoalStatus = 6
	StatusRecalling  GoalStatus = 7
	StatusRecalled   GoalStatus = 8
	StatusLost       GoalStatus = 9
)

func (s GoalStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusActive:
		return "ACTIVE"
	case StatusPreempted:
		return "PREEMPTED"
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusAborted:
		return "ABORTED"
	case StatusRejected:
		return "REJECTED"
	case StatusPreempting:
		return "PREEMPTING"
	case StatusRecalling:
		return "RECALLING"
	case StatusRecalled:
		return "RECALLED"
	case StatusLost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// terminal reports whether status is one a goal can finish in. A goal is
// only actually done once this AND a result has been observed — status
// alone is not sufficient, since a status array can report a terminal
// code for a tick before the paired result message arrives.
func (s GoalStatus) terminal() bool {
	switch s {
	case StatusPreempted, StatusSucceeded, StatusAborted, StatusRecalled, StatusRejected, StatusLost:
		return true
	default:
		return false
	}
}

// goalIDGenerator mints rosbridge_msgs/actionlib_msgs-style goal ids of
// the form "<basename>-<counter>-<unix-seconds>", unique per client the
// same way the node-name-prefixed generator the teacher references does,
// substituting a random base (no node identity exists in this client) for
// collision-freedom across independently constructed clients.
type goalIDGenerator struct {
	base    string
	counter uint64
}

func newGoalIDGenerator() *goalIDGenerator {
	return &goalIDGenerator{base: uuid.NewString()[:8]}
}

func (g *goalIDGenerator) generateID() string {
	n := atomic.AddUint64(&g.counter, 1)
	return g.base + "-" + itoa(n) + "-" + itoa(uint64(time.Now().Unix()))
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// goalStatusFromArray extracts the GoalStatus entry matching goalID from a
// decoded actionlib_msgs/GoalStatusArray value, as published on a
// "<action>/status" topic.
func goalStatusFromArray(msg rosbridge.Value, goalID string) (GoalStatus, string, bool) {
	m, ok := msg.(map[string]rosbridge.Value)
	if !ok {
		m2, ok2 := msg.(map[string]any)
		if !ok2 {
			return 0, "", false
		}
		m = m2
	}
	entries, _ := m["status_list"].([]rosbridge.Value)
	for _, e := range entries {
		em, ok := e.(map[string]rosbridge.Value)
		if !ok {
			em2, ok2 := e.(map[string]any)
			if !ok2 {
				continue
			}
			em = em2
		}
		gid, _ := em["goal_id"].(map[string]rosbridge.Value)
		if gid == nil {
			gid2, _ := em["goal_id"].(map[string]any)
			gid = gid2
		}
		id, _ := gid["id"].(string)
		if id != goalID {
			continue
		}
		statusNum, _ := em["status"].(float64)
		text, _ := em["text"].(string)
		return GoalStatus(statusNum), text, true
	}
	return 0, "", false
}
