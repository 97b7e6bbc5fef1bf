package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rasad8686/BotBuilder-Platform-sub005/config"
)

// envelope wraps relayed payloads with the publishing node's id so a node
// never re-delivers its own traffic.
type envelope struct {
	Node   string  `json:"node"`
	Event  *Event  `json:"event,omitempty"`
	Signal *Signal `json:"signal,omitempty"`
}

// Bridge fans events out across nodes over Redis pub/sub. Room-scoped
// events reach subscribers connected to any node, and pause/stop signals
// propagate globally, matching single-node semantics.
type Bridge struct {
	client  *redis.Client
	channel *Channel
	nodeID  string
	prefix  string
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridgeClient connects a Redis client from configuration.
func NewBridgeClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// NewBridge creates a bridge over an established client. The prefix
// namespaces the pub/sub channels, e.g. "botbuilder:".
func NewBridge(client *redis.Client, channel *Channel, prefix string, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		client:  client,
		channel: channel,
		nodeID:  uuid.NewString(),
		prefix:  prefix,
		logger:  logger.With(zap.String("component", "redis_bridge")),
	}
}

func (b *Bridge) eventsChannel() string  { return b.prefix + "events" }
func (b *Bridge) signalsChannel() string { return b.prefix + "signals" }

// Start attaches the bridge to its channel and begins consuming relayed
// traffic from other nodes.
func (b *Bridge) Start(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.eventsChannel(), b.signalsChannel())
	// Force the subscription to be established before Start returns.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.channel.SetRelay(b)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.dispatch(msg)
			}
		}
	}()

	b.logger.Info("redis bridge started",
		zap.String("node_id", b.nodeID),
		zap.String("events_channel", b.eventsChannel()),
	)
	return nil
}

// Stop detaches and waits for the consumer to exit.
func (b *Bridge) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// RelayEvent implements Relay: publish a locally broadcast event.
func (b *Bridge) RelayEvent(event Event) {
	b.publish(b.eventsChannel(), envelope{Node: b.nodeID, Event: &event})
}

// RelaySignal implements Relay: publish a locally raised pause/stop signal.
func (b *Bridge) RelaySignal(sig Signal) {
	b.publish(b.signalsChannel(), envelope{Node: b.nodeID, Signal: &sig})
}

func (b *Bridge) publish(channel string, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("marshal relay envelope", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Warn("relay publish failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

// dispatch delivers traffic relayed by other nodes into the local channel
// without re-relaying it.
func (b *Bridge) dispatch(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.Warn("malformed relay envelope", zap.Error(err))
		return
	}
	if env.Node == b.nodeID {
		return
	}

	switch {
	case env.Event != nil:
		b.channel.deliver(*env.Event)
	case env.Signal != nil:
		b.channel.broadcastSignal(*env.Signal)
	}
}
