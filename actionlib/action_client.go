package actionlib

import (
	"sync"
	"time"

	"github.com/rocos-io/rosbridge-go"
)

// ActionClient drives one actionlib action over rosbridge: it advertises
// the goal and cancel topics, subscribes to status/feedback/result, and
// hands every goal it sends its own ClientGoalHandler so callers can track
// CommState transitions independently of one another, the same
// one-handler-per-goal bookkeeping the reference action client keeps in
// its handlers slice.
type ActionClient struct {
	session    *rosbridge.RosSession
	name       string
	actionType string

	goalTopic     *rosbridge.Topic
	cancelTopic   *rosbridge.Topic
	statusTopic   *rosbridge.Topic
	feedbackTopic *rosbridge.Topic
	resultTopic   *rosbridge.Topic

	idGen *goalIDGenerator

	mu             sync.Mutex
	handlers       map[string]*ClientGoalHandler
	statusReceived bool
}

// NewActionClient constructs a client for the named action server and
// wires its five standard topics. The caller must still connect/run the
// underlying session.
func NewActionClient(session *rosbridge.RosSession, name, actionType string) *ActionClient {
	c := &ActionClient{
		session:    session,
		name:       name,
		actionType: actionType,
		idGen:      newGoalIDGenerator(),
		handlers:   make(map[string]*ClientGoalHandler),
	}

	c.goalTopic = session.Topic(name+"/goal", actionType+"Goal")
	c.cancelTopic = session.Topic(name+"/cancel", "actionlib_msgs/GoalID")
	c.statusTopic = session.Topic(name+"/status", "actionlib_msgs/GoalStatusArray")
	c.feedbackTopic = session.Topic(name+"/feedback", actionType+"Feedback")
	c.resultTopic = session.Topic(name+"/result", actionType+"Result")

	c.statusTopic.Subscribe(c.onStatus)
	c.feedbackTopic.Subscribe(c.onFeedback)
	c.resultTopic.Subscribe(c.onResult)

	return c
}

// WaitForServer blocks until a status message has been received from the
// server or timeout elapses.
func (c *ActionClient) WaitForServer(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		ok := c.statusReceived
		c.mu.Unlock()
		if ok {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

// SendGoal publishes goal and returns the ClientGoalHandler tracking it.
// transitionCb, if non-nil, fires on every CommState transition;
// feedbackCb, if non-nil, fires on every feedback message for this goal.
func (c *ActionClient) SendGoal(goal rosbridge.Value, transitionCb func(*ClientGoalHandler), feedbackCb func(*ClientGoalHandler, rosbridge.Value)) *ClientGoalHandler {
	id := c.idGen.generateID()
	h := newClientGoalHandler(c, id)
	h.transitionCb = transitionCb
	h.feedbackCb = feedbackCb

	c.mu.Lock()
	c.handlers[id] = h
	c.mu.Unlock()

	wireGoal := map[string]rosbridge.Value{
		"goal_id": map[string]rosbridge.Value{
			"id":    id,
			"stamp": rosbridge.Now(),
		},
		"goal": goal,
	}
	_ = c.goalTopic.Publish(wireGoal)

	return h
}

// CancelGoal requests cancellation of one goal by id.
func (c *ActionClient) CancelGoal(goalID string) error {
	return c.cancelTopic.Publish(map[string]rosbridge.Value{"id": goalID, "stamp": rosbridge.Now()})
}

// CancelAllGoals requests cancellation of every goal this server has
// ever received, per actionlib's all-zero GoalID cancel convention.
func (c *ActionClient) CancelAllGoals() error {
	return c.cancelTopic.Publish(map[string]rosbridge.Value{"id": "", "stamp": rosbridge.Time(0, 0)})
}

// CancelAllGoalsBeforeTime requests cancellation of every goal received
// at or before t, per actionlib's timestamp-only cancel convention.
func (c *ActionClient) CancelAllGoalsBeforeTime(t rosbridge.Value) error {
	return c.cancelTopic.Publish(map[string]rosbridge.Value{"id": "", "stamp": t})
}

// Handler returns the ClientGoalHandler for goalID, if this client sent it.
func (c *ActionClient) Handler(goalID string) (*ClientGoalHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handlers[goalID]
	return h, ok
}

func (c *ActionClient) onStatus(msg rosbridge.Value) {
	c.mu.Lock()
	c.statusReceived = true
	handlers := make(map[string]*ClientGoalHandler, len(c.handlers))
	for k, v := range c.handlers {
		handlers[k] = v
	}
	c.mu.Unlock()

	for id, h := range handlers {
		status, text, found := goalStatusFromArray(msg, id)
		if !found {
			continue
		}
		h.updateStatus(status, text)
	}
}

func (c *ActionClient) onFeedback(msg rosbridge.Value) {
	id, feedback, ok := extractGoalFeedback(msg)
	if !ok {
		return
	}
	c.mu.Lock()
	h := c.handlers[id]
	c.mu.Unlock()
	if h != nil {
		h.updateFeedback(feedback)
	}
}

func (c *ActionClient) onResult(msg rosbridge.Value) {
	id, result, ok := extractGoalResult(msg)
	if !ok {
		return
	}
	c.mu.Lock()
	h := c.handlers[id]
	c.mu.Unlock()
	if h != nil {
		h.updateResult(result)
	}
}

func asValueMap(v rosbridge.Value) (map[string]rosbridge.Value, bool) {
	if m, ok := v.(map[string]rosbridge.Value); ok {
		return m, true
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func extractGoalID(v rosbridge.Value) (string, bool) {
	m, ok := asValueMap(v)
	if !ok {
		return "", false
	}
	gid, ok := asValueMap(m["status"])
	if ok {
		if inner, ok := asValueMap(gid["goal_id"]); ok {
			id, ok := inner["id"].(string)
			return id, ok
		}
	}
	if gid, ok := asValueMap(m["goal_id"]); ok {
		id, ok := gid["id"].(string)
		return id, ok
	}
	return "", false
}

func extractGoalFeedback(v rosbridge.Value) (string, rosbridge.Value, bool) {
	m, ok := asValueMap(v)
	if !ok {
		return "", nil, false
	}
	id, ok := extractGoalID(v)
	if !ok {
		return "", nil, false
	}
	return id, m["feedback"], true
}

func extractGoalResult(v rosbridge.Value) (string, rosbridge.Value, bool) {
	m, ok := asValueMap(v)
	if !ok {
		return "", nil, false
	}
	id, ok := extractGoalID(v)
	if !ok {
		return "", nil, false
	}
	return id, m["result"], true
}
