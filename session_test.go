package rosbridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocos-io/rosbridge-go/transport"
)

func newTestSession(t *testing.T) (*RosSession, *transport.Fake) {
	t.Helper()
	fake := transport.NewFake()
	s := NewSession("localhost", 9090, WithTransport(fake), WithBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     4 * time.Millisecond,
		Factor:       2,
		MaxRetries:   0,
	}))
	require.NoError(t, s.Run(time.Second))
	return s, fake
}

func TestRunBecomesReady(t *testing.T) {
	s, _ := newTestSession(t)
	defer s.Close()
	assert.True(t, s.IsConnected())
}

func TestRunTimesOutWithoutOpen(t *testing.T) {
	fake := transport.NewFake()
	fake.FailNextConnect(assert.AnError)
	s := NewSession("localhost", 9090, WithTransport(fake), WithBackoff(BackoffConfig{
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Factor:       1,
	}))
	err := s.Run(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)
	_ = s.Close()
}

func TestTopicSubscribeSendsWireFrameOnce(t *testing.T) {
	s, fake := newTestSession(t)
	defer s.Close()

	topic := s.Topic("/chatter", "std_msgs/String")

	var gotFirst, gotSecond []Value
	unsub1, err := topic.Subscribe(func(msg Value) { gotFirst = append(gotFirst, msg) })
	require.NoError(t, err)
	unsub2, err := topic.Subscribe(func(msg Value) { gotSecond = append(gotSecond, msg) })
	require.NoError(t, err)

	subscribeFrames := countFramesWithOp(fake.Sent(), "subscribe")
	assert.Equal(t, 1, subscribeFrames, "wire subscribe must be sent exactly once regardless of subscriber count")

	fake.InjectMessage(`{"op":"publish","topic":"/chatter","msg":{"data":"hi"}}`)
	time.Sleep(20 * time.Millisecond)

	require.Len(t, gotFirst, 1)
	require.Len(t, gotSecond, 1)

	unsub1()
	unsub2()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, countFramesWithOp(fake.Sent(), "unsubscribe"))
}

func TestServiceCallRoundTrip(t *testing.T) {
	s, fake := newTestSession(t)
	defer s.Close()

	svc := s.Service("/add_two_ints", "rosbridge_test/AddTwoInts")

	done := make(chan struct{})
	var result Value
	var callErr error
	go func() {
		result, callErr = svc.CallWithTimeout(map[string]Value{"a": 1, "b": 2}, time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	var frame map[string]Value
	sent := fake.Sent()
	require.NotEmpty(t, sent)
	require.NoError(t, json.Unmarshal([]byte(sent[len(sent)-1]), &frame))
	id, _ := frame["id"].(string)
	require.NotEmpty(t, id)

	resp, err := frameServiceResponse(id, "/add_two_ints", map[string]Value{"sum": 3}, true).marshal()
	require.NoError(t, err)
	fake.InjectMessage(resp)

	<-done
	require.NoError(t, callErr)
	m, ok := asMap(result)
	require.True(t, ok)
	assert.Equal(t, float64(3), m["sum"])
}

func TestServiceCallFailureSurfacesServiceFailed(t *testing.T) {
	s, fake := newTestSession(t)
	defer s.Close()

	svc := s.Service("/will_fail", "std_srvs/Empty")

	done := make(chan struct{})
	var callErr error
	go func() {
		_, callErr = svc.CallWithTimeout(map[string]Value{}, time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	var frame map[string]Value
	sent := fake.Sent()
	require.NoError(t, json.Unmarshal([]byte(sent[len(sent)-1]), &frame))
	id, _ := frame["id"].(string)

	resp, err := frameServiceResponse(id, "/will_fail", map[string]Value{"error": "boom"}, false).marshal()
	require.NoError(t, err)
	fake.InjectMessage(resp)

	<-done
	require.Error(t, callErr)
	var svcErr *Error
	require.ErrorAs(t, callErr, &svcErr)
	assert.Equal(t, KindServiceFailed, svcErr.Kind)
}

func TestServiceCallWithTimeoutReturnsErrTimeoutWithoutResponse(t *testing.T) {
	s, _ := newTestSession(t)
	defer s.Close()

	svc := s.Service("/never_answers", "std_srvs/Empty")

	start := time.Now()
	_, err := svc.CallWithTimeout(map[string]Value{}, 30*time.Millisecond)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, time.Second, "CallWithTimeout must not block past its own deadline")
}

func TestAdvertisedServiceAnswersCallService(t *testing.T) {
	s, fake := newTestSession(t)
	defer s.Close()

	_, err := s.AdvertiseService("/echo", "rosbridge_test/Echo", func(args Value) (Value, error) {
		m, _ := asMap(args)
		return map[string]Value{"out": m["in"]}, nil
	})
	require.NoError(t, err)

	fake.InjectMessage(`{"op":"call_service","id":"call:1","service":"/echo","args":{"in":"hello"}}`)
	time.Sleep(20 * time.Millisecond)

	sent := fake.Sent()
	var found map[string]Value
	for _, f := range sent {
		var frame map[string]Value
		require.NoError(t, json.Unmarshal([]byte(f), &frame))
		if frame["op"] == "service_response" {
			found = frame
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, true, found["result"])
	values, _ := asMap(found["values"])
	assert.Equal(t, "hello", values["out"])
}

func TestReconnectReplaysResubscriptionsInOrder(t *testing.T) {
	s, fake := newTestSession(t)
	defer s.Close()

	var order []string
	s.On("error", func(args ...Value) { t.Logf("error event: %v", args) })

	topicA := s.Topic("/a", "std_msgs/String")
	topicB := s.Topic("/b", "std_msgs/String")
	_, err := topicA.Subscribe(func(Value) {})
	require.NoError(t, err)
	_, err = topicB.Subscribe(func(Value) {})
	require.NoError(t, err)

	readyCh := make(chan struct{}, 1)
	s.On("ready", func(args ...Value) {
		select {
		case readyCh <- struct{}{}:
		default:
		}
	})

	fake.InjectClose(1006, "dropped")
	select {
	case <-readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("did not become ready again after reconnect")
	}
	time.Sleep(20 * time.Millisecond)

	for _, f := range fake.Sent() {
		var frame map[string]Value
		require.NoError(t, json.Unmarshal([]byte(f), &frame))
		if frame["op"] == "subscribe" {
			order = append(order, frame["topic"].(string))
		}
	}
	require.True(t, len(order) >= 2)
	assert.Equal(t, "/a", order[len(order)-2])
	assert.Equal(t, "/b", order[len(order)-1])
}

func countFramesWithOp(frames []string, op string) int {
	n := 0
	for _, f := range frames {
		var frame map[string]Value
		if err := json.Unmarshal([]byte(f), &frame); err != nil {
			continue
		}
		if frame["op"] == op {
			n++
		}
	}
	return n
}
