// Package events implements the real-time execution event channel: per-
// execution "rooms" of subscribers, typed progress emitters, a WebSocket
// gateway for dashboard clients, and an optional Redis bridge that fans
// events out across nodes.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/internal/metrics"
)

// Event is one structured progress event. Data fields are inlined next to
// the envelope fields when serialized, so subscribers see flat objects with
// a type discriminator, the execution id, and an ISO-8601 timestamp.
type Event struct {
	Type        string
	ExecutionID string
	Timestamp   time.Time
	Data        map[string]any
}

// MarshalJSON flattens Data into the envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	out["executionId"] = e.ExecutionID
	out["timestamp"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON; envelope keys are not kept in Data.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["type"].(string); ok {
		e.Type = v
	}
	if v, ok := raw["executionId"].(string); ok {
		e.ExecutionID = v
	}
	if v, ok := raw["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.Timestamp = ts
		}
	}
	delete(raw, "type")
	delete(raw, "executionId")
	delete(raw, "timestamp")
	if len(raw) > 0 {
		e.Data = raw
	}
	return nil
}

// Subscriber receives events. Send must not block indefinitely; slow
// subscribers are dropped by their transport, not by the channel.
type Subscriber interface {
	ID() string
	Send(event Event) error
}

// SignalKind discriminates the cooperative control signals subscribers may
// send. They are advisory: the engine observes them but does not suspend an
// in-flight topology.
type SignalKind string

const (
	SignalPause SignalKind = "pause"
	SignalStop  SignalKind = "stop"
)

// Signal is a pause/stop request raised by a subscriber.
type Signal struct {
	Kind        SignalKind `json:"kind"`
	ExecutionID string     `json:"executionId"`
	RequestedBy string     `json:"requestedBy"`
}

// Relay forwards locally broadcast events to other nodes. Implemented by
// the Redis bridge; nil when the service runs single-node.
type Relay interface {
	RelayEvent(event Event)
	RelaySignal(sig Signal)
}

// Channel is the per-execution broadcast hub. Each execution id owns a
// "room" of subscribers; events broadcast to a room reach only that room's
// subscribers, while pause/stop signals are rebroadcast globally.
type Channel struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Subscriber
	memberships map[string]map[string]struct{}
	subscribers map[string]Subscriber

	relay   Relay
	signals chan Signal

	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewChannel creates an empty channel hub.
func NewChannel(logger *zap.Logger, collector *metrics.Collector) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		rooms:       make(map[string]map[string]Subscriber),
		memberships: make(map[string]map[string]struct{}),
		subscribers: make(map[string]Subscriber),
		signals:     make(chan Signal, 64),
		logger:      logger.With(zap.String("component", "event_channel")),
		metrics:     collector,
	}
}

// SetRelay attaches a cross-node relay. Must be called before traffic.
func (c *Channel) SetRelay(relay Relay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relay = relay
}

// Join adds sub to the room of executionID.
func (c *Channel) Join(sub Subscriber, executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms[executionID]
	if !ok {
		room = make(map[string]Subscriber)
		c.rooms[executionID] = room
	}
	room[sub.ID()] = sub
	c.subscribers[sub.ID()] = sub

	joined, ok := c.memberships[sub.ID()]
	if !ok {
		joined = make(map[string]struct{})
		c.memberships[sub.ID()] = joined
	}
	joined[executionID] = struct{}{}

	c.metrics.SetRoomSubscribers(executionID, len(room))
	c.logger.Debug("subscriber joined room",
		zap.String("subscriber", sub.ID()),
		zap.String("execution_id", executionID),
	)
}

// Leave removes the subscriber from one room.
func (c *Channel) Leave(subscriberID, executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked(subscriberID, executionID)
}

func (c *Channel) leaveLocked(subscriberID, executionID string) {
	if room, ok := c.rooms[executionID]; ok {
		delete(room, subscriberID)
		if len(room) == 0 {
			delete(c.rooms, executionID)
			c.metrics.DeleteRoom(executionID)
		} else {
			c.metrics.SetRoomSubscribers(executionID, len(room))
		}
	}
	if joined, ok := c.memberships[subscriberID]; ok {
		delete(joined, executionID)
		if len(joined) == 0 {
			delete(c.memberships, subscriberID)
		}
	}
}

// HandleDisconnect removes the subscriber from every room and from the
// global set.
func (c *Channel) HandleDisconnect(subscriberID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for executionID := range c.memberships[subscriberID] {
		c.leaveLocked(subscriberID, executionID)
	}
	delete(c.memberships, subscriberID)
	delete(c.subscribers, subscriberID)

	c.logger.Debug("subscriber disconnected", zap.String("subscriber", subscriberID))
}

// RoomSize returns the current subscriber count of one room.
func (c *Channel) RoomSize(executionID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms[executionID])
}

// Broadcast sends an event to every subscriber of the execution's room and
// relays it to other nodes. Emission order is preserved per execution at
// the call site; no cross-execution ordering is guaranteed.
func (c *Channel) Broadcast(executionID, eventType string, data map[string]any) {
	event := Event{
		Type:        eventType,
		ExecutionID: executionID,
		Timestamp:   time.Now().UTC(),
		Data:        data,
	}
	c.deliver(event)

	c.mu.RLock()
	relay := c.relay
	c.mu.RUnlock()
	if relay != nil {
		relay.RelayEvent(event)
	}
}

// deliver sends event to the local room only. The Redis bridge calls this
// for events relayed from other nodes, so they are not re-relayed.
func (c *Channel) deliver(event Event) {
	c.mu.RLock()
	room := c.rooms[event.ExecutionID]
	subs := make([]Subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			c.logger.Warn("event delivery failed",
				zap.String("subscriber", sub.ID()),
				zap.String("execution_id", event.ExecutionID),
				zap.String("event_type", event.Type),
				zap.Error(err),
			)
		}
	}
}

// RequestSignal handles a pause/stop request from a subscriber. The signal
// is rebroadcast globally (to every connected subscriber, not just the
// room), relayed to other nodes, and queued on the advisory signal feed.
func (c *Channel) RequestSignal(sig Signal) {
	c.broadcastSignal(sig)

	c.mu.RLock()
	relay := c.relay
	c.mu.RUnlock()
	if relay != nil {
		relay.RelaySignal(sig)
	}
}

// broadcastSignal delivers sig to every connected subscriber and the signal
// feed, without relaying.
func (c *Channel) broadcastSignal(sig Signal) {
	event := Event{
		Type:        "workflow:" + string(sig.Kind),
		ExecutionID: sig.ExecutionID,
		Timestamp:   time.Now().UTC(),
		Data:        map[string]any{"requestedBy": sig.RequestedBy},
	}

	c.mu.RLock()
	subs := make([]Subscriber, 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		subs = append(subs, sub)
	}
	c.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			c.logger.Warn("signal delivery failed",
				zap.String("subscriber", sub.ID()),
				zap.Error(err),
			)
		}
	}

	select {
	case c.signals <- sig:
	default:
		c.logger.Warn("signal feed full, dropping signal",
			zap.String("kind", string(sig.Kind)),
			zap.String("execution_id", sig.ExecutionID),
		)
	}
}

// Signals exposes the advisory pause/stop feed. The engine logs observed
// signals; it does not suspend running topologies.
func (c *Channel) Signals() <-chan Signal {
	return c.signals
}
