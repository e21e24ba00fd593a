package actionlib

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rocos-io/rosbridge-go"
)

// SimpleActionServer hosts one action goal at a time: accepting a new
// goal preempts whatever is currently running, the same single-goal
// discipline actionlib's SimpleActionServer enforces everywhere. Its
// status array is republished by a 10 Hz time.Ticker whose ticks are
// gated by a rate.Limiter (10 per second, burst 1); both rates are fixed
// at construction and are not configurable by callers.
type SimpleActionServer struct {
	session    *rosbridge.RosSession
	name       string
	actionType string

	goalTopic     *rosbridge.Topic
	cancelTopic   *rosbridge.Topic
	statusTopic   *rosbridge.Topic
	feedbackTopic *rosbridge.Topic
	resultTopic   *rosbridge.Topic

	executeCb func(*ServerGoalHandler)

	mu          sync.Mutex
	current     *ServerGoalHandler
	next        *ServerGoalHandler
	newGoal     bool
	preempt     bool
	executorCh  chan struct{}
	statusLimit *rate.Limiter
}

// NewSimpleActionServer constructs a hosted action server for name and
// wires its five standard topics. executeCb runs on the server's single
// executor goroutine, once per accepted goal and one goal at a time, and
// must drive it to a terminal SetSucceeded/SetAborted/SetCancelled call.
func NewSimpleActionServer(session *rosbridge.RosSession, name, actionType string, executeCb func(*ServerGoalHandler)) *SimpleActionServer {
	s := &SimpleActionServer{
		session:     session,
		name:        name,
		actionType:  actionType,
		executeCb:   executeCb,
		executorCh:  make(chan struct{}, 100),
		statusLimit: rate.NewLimiter(rate.Every(time.Second/10), 1),
	}

	s.goalTopic = session.Topic(name+"/goal", actionType+"Goal")
	s.cancelTopic = session.Topic(name+"/cancel", "actionlib_msgs/GoalID")
	s.statusTopic = session.Topic(name+"/status", "actionlib_msgs/GoalStatusArray")
	s.feedbackTopic = session.Topic(name+"/feedback", actionType+"Feedback")
	s.resultTopic = session.Topic(name+"/result", actionType+"Result")

	s.goalTopic.Subscribe(s.onGoal)
	s.cancelTopic.Subscribe(s.onCancel)

	return s
}

// Start begins the status ticker and, if an execute callback is set, the
// goal executor loop. Both run until ctx is cancelled.
func (s *SimpleActionServer) Start(ctx context.Context) {
	go s.statusLoop(ctx)
	if s.executeCb != nil {
		go s.goalExecutor(ctx)
	}
}

func (s *SimpleActionServer) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.statusLimit.Allow() {
				s.publishStatus()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *SimpleActionServer) goalExecutor(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.executorCh:
			s.execute()
		case <-ticker.C:
			s.execute()
		case <-ctx.Done():
			return
		}
	}
}

func (s *SimpleActionServer) execute() {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return
	}
	if !s.newGoal || s.next == nil {
		s.mu.Unlock()
		return
	}
	h := s.next
	s.current = h
	s.next = nil
	s.newGoal = false
	s.preempt = false
	s.mu.Unlock()

	if err := h.setAccepted("accepted by SimpleActionServer"); err != nil {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		return
	}

	s.executeCb(h)

	s.mu.Lock()
	if s.current == h {
		s.current = nil
	}
	s.mu.Unlock()
}

// IsPreemptRequested reports whether the currently executing goal has
// been asked to preempt.
func (s *SimpleActionServer) IsPreemptRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preempt
}

func (s *SimpleActionServer) onGoal(msg rosbridge.Value) {
	id, ok := extractGoalID(msg)
	if !ok {
		return
	}
	m, _ := asValueMap(msg)
	goal := m["goal"]
	h := newServerGoalHandler(s, id, goal)

	s.mu.Lock()
	if s.current != nil {
		s.preempt = true
	}
	s.next = h
	s.newGoal = true
	s.mu.Unlock()

	select {
	case s.executorCh <- struct{}{}:
	default:
	}
}

func (s *SimpleActionServer) onCancel(msg rosbridge.Value) {
	m, _ := asValueMap(msg)
	id, _ := m["id"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		// cancel-all: the server's single current goal, if any
		if s.current != nil {
			s.preempt = true
			_ = s.current.SetCancelRequested()
		}
		return
	}
	if s.current != nil && s.current.GoalID() == id {
		s.preempt = true
		_ = s.current.SetCancelRequested()
	}
}

func (s *SimpleActionServer) publishStatus() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()

	entries := []rosbridge.Value{}
	if h != nil {
		status, text := h.Status()
		entries = append(entries, map[string]rosbridge.Value{
			"goal_id": map[string]rosbridge.Value{"id": h.GoalID()},
			"status":  uint8(status),
			"text":    text,
		})
	}
	_ = s.statusTopic.Publish(map[string]rosbridge.Value{
		"header":      rosbridge.Header(0, rosbridge.Now(), ""),
		"status_list": entries,
	})
}

func (s *SimpleActionServer) publishFeedback(h *ServerGoalHandler, feedback rosbridge.Value) error {
	return s.feedbackTopic.Publish(map[string]rosbridge.Value{
		"status": map[string]rosbridge.Value{
			"goal_id": map[string]rosbridge.Value{"id": h.GoalID()},
		},
		"feedback": feedback,
	})
}

func (s *SimpleActionServer) publishResult(h *ServerGoalHandler, result rosbridge.Value) error {
	status, text := h.Status()
	return s.resultTopic.Publish(map[string]rosbridge.Value{
		"status": map[string]rosbridge.Value{
			"goal_id": map[string]rosbridge.Value{"id": h.GoalID()},
			"status":  uint8(status),
			"text":    text,
		},
		"result": result,
	})
}
