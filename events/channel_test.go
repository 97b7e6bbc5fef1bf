package events

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber records every event it receives.
type fakeSubscriber struct {
	id   string
	fail bool

	mu     sync.Mutex
	events []Event
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) Send(event Event) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeSubscriber) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

// fakeRelay records relayed traffic.
type fakeRelay struct {
	mu      sync.Mutex
	events  []Event
	signals []Signal
}

func (f *fakeRelay) RelayEvent(event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeRelay) RelaySignal(sig Signal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sig)
}

func TestChannelJoinLeave(t *testing.T) {
	c := NewChannel(nil, nil)
	sub := &fakeSubscriber{id: "s1"}

	c.Join(sub, "exec-1")
	assert.Equal(t, 1, c.RoomSize("exec-1"))

	c.Join(sub, "exec-1")
	assert.Equal(t, 1, c.RoomSize("exec-1"), "joining the same room twice must not double-count")

	c.Leave("s1", "exec-1")
	assert.Equal(t, 0, c.RoomSize("exec-1"))
}

func TestChannelBroadcastIsRoomScoped(t *testing.T) {
	c := NewChannel(nil, nil)
	inRoom := &fakeSubscriber{id: "in"}
	outside := &fakeSubscriber{id: "out"}

	c.Join(inRoom, "exec-1")
	c.Join(outside, "exec-2")

	c.Broadcast("exec-1", TypeExecutionStart, map[string]any{"workflowId": int64(7)})

	require.Len(t, inRoom.received(), 1)
	assert.Empty(t, outside.received(), "events must not leak into other rooms")

	got := inRoom.received()[0]
	assert.Equal(t, TypeExecutionStart, got.Type)
	assert.Equal(t, "exec-1", got.ExecutionID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestChannelBroadcastSurvivesFailingSubscriber(t *testing.T) {
	c := NewChannel(nil, nil)
	broken := &fakeSubscriber{id: "broken", fail: true}
	healthy := &fakeSubscriber{id: "healthy"}

	c.Join(broken, "exec-1")
	c.Join(healthy, "exec-1")

	c.Broadcast("exec-1", TypeStepStart, map[string]any{"order": 0})

	assert.Len(t, healthy.received(), 1, "one failing subscriber must not block delivery")
}

func TestChannelHandleDisconnect(t *testing.T) {
	c := NewChannel(nil, nil)
	sub := &fakeSubscriber{id: "s1"}
	other := &fakeSubscriber{id: "s2"}

	c.Join(sub, "exec-1")
	c.Join(sub, "exec-2")
	c.Join(other, "exec-1")

	c.HandleDisconnect("s1")

	assert.Equal(t, 1, c.RoomSize("exec-1"))
	assert.Equal(t, 0, c.RoomSize("exec-2"))

	c.Broadcast("exec-2", TypeStepStart, map[string]any{"order": 0})
	assert.Empty(t, sub.received(), "disconnected subscriber must receive nothing")
}

func TestChannelBroadcastRelays(t *testing.T) {
	c := NewChannel(nil, nil)
	relay := &fakeRelay{}
	c.SetRelay(relay)

	c.Broadcast("exec-1", TypeStepComplete, map[string]any{"order": 1})

	require.Len(t, relay.events, 1)
	assert.Equal(t, TypeStepComplete, relay.events[0].Type)
}

func TestChannelDeliverDoesNotRelay(t *testing.T) {
	c := NewChannel(nil, nil)
	relay := &fakeRelay{}
	c.SetRelay(relay)

	sub := &fakeSubscriber{id: "s1"}
	c.Join(sub, "exec-1")

	c.deliver(Event{Type: TypeStepStart, ExecutionID: "exec-1", Timestamp: time.Now()})

	assert.Len(t, sub.received(), 1)
	assert.Empty(t, relay.events, "remote events must not bounce back out")
}

func TestRequestSignalIsGlobal(t *testing.T) {
	c := NewChannel(nil, nil)
	inRoom := &fakeSubscriber{id: "in"}
	elsewhere := &fakeSubscriber{id: "elsewhere"}
	relay := &fakeRelay{}
	c.SetRelay(relay)

	c.Join(inRoom, "exec-1")
	c.Join(elsewhere, "exec-2")

	c.RequestSignal(Signal{Kind: SignalPause, ExecutionID: "exec-1", RequestedBy: "in"})

	require.Len(t, inRoom.received(), 1)
	require.Len(t, elsewhere.received(), 1, "signals rebroadcast to every subscriber, not just the room")

	got := elsewhere.received()[0]
	assert.Equal(t, "workflow:pause", got.Type)
	assert.Equal(t, "exec-1", got.ExecutionID)
	assert.Equal(t, "in", got.Data["requestedBy"])

	require.Len(t, relay.signals, 1)
	assert.Equal(t, SignalPause, relay.signals[0].Kind)

	select {
	case sig := <-c.Signals():
		assert.Equal(t, SignalPause, sig.Kind)
		assert.Equal(t, "exec-1", sig.ExecutionID)
	default:
		t.Fatal("signal feed should carry the request")
	}
}

func TestEventMarshalFlattensData(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	event := Event{
		Type:        TypeStepComplete,
		ExecutionID: "exec-1",
		Timestamp:   ts,
		Data: map[string]any{
			"agentId":    float64(42),
			"tokensUsed": float64(120),
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "step:complete", raw["type"])
	assert.Equal(t, "exec-1", raw["executionId"])
	assert.Equal(t, "2025-03-14T09:26:53Z", raw["timestamp"])
	assert.Equal(t, float64(42), raw["agentId"], "data fields live next to the envelope, not nested")
	assert.NotContains(t, raw, "data")

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, event.Type, back.Type)
	assert.Equal(t, event.ExecutionID, back.ExecutionID)
	assert.True(t, event.Timestamp.Equal(back.Timestamp))
	assert.Equal(t, event.Data, back.Data)
}

func TestEmitterPayloads(t *testing.T) {
	c := NewChannel(nil, nil)
	sub := &fakeSubscriber{id: "s1"}
	c.Join(sub, "exec-1")

	c.EmitExecutionStart("exec-1", 7, "sequential")
	c.EmitStepStart("exec-1", 42, 0)
	c.EmitStepProgress("exec-1", 42, 0, map[string]any{"retry": 1})
	c.EmitStepComplete("exec-1", 42, 0, "hello", 120, 35)
	c.EmitStepFailed("exec-1", 43, 1, "Step 1 failed: provider timeout")
	c.EmitAgentMessage("exec-1", 42, "partial text")
	c.EmitExecutionComplete("exec-1", "done", 240, 90)
	c.EmitExecutionError("exec-1", "Workflow not found: 999")
	c.EmitExecutionPaused("exec-1", "s1")
	c.EmitExecutionResumed("exec-1", "s1")

	events := sub.received()
	require.Len(t, events, 10)

	wantTypes := []string{
		TypeExecutionStart, TypeStepStart, TypeStepProgress, TypeStepComplete,
		TypeStepFailed, TypeAgentMessage, TypeExecutionComplete,
		TypeExecutionError, TypeExecutionPaused, TypeExecutionResumed,
	}
	for i, e := range events {
		assert.Equal(t, wantTypes[i], e.Type)
		assert.Equal(t, "exec-1", e.ExecutionID)
	}

	start := events[0]
	assert.Equal(t, int64(7), start.Data["workflowId"])
	assert.Equal(t, "sequential", start.Data["workflowType"])

	progress := events[2]
	assert.Equal(t, 1, progress.Data["retry"])
	assert.Equal(t, int64(42), progress.Data["agentId"])

	complete := events[3]
	assert.Equal(t, "hello", complete.Data["output"])
	assert.Equal(t, int64(120), complete.Data["tokensUsed"])
	assert.Equal(t, int64(35), complete.Data["durationMs"])

	failed := events[4]
	assert.Equal(t, "Step 1 failed: provider timeout", failed.Data["error"])
}
