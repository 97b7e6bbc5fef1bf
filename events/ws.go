package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// clientMessage is what dashboard clients send over the WebSocket.
type clientMessage struct {
	Action      string `json:"action"`
	ExecutionID string `json:"executionId,omitempty"`
}

const wsWriteTimeout = 10 * time.Second

// wsSubscriber adapts one WebSocket connection to the Subscriber interface.
// Writes are mutex-guarded because the WebSocket does not support
// concurrent writes.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

func (s *wsSubscriber) ID() string { return s.id }

// Send serializes the event and writes it with a bounded deadline so one
// slow client cannot stall broadcasting.
func (s *wsSubscriber) Send(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("connection closed")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()

	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (s *wsSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close(websocket.StatusNormalClosure, "closing")
}

// Gateway exposes the event channel to dashboard clients over WebSocket.
// Clients join and leave execution rooms and may raise pause/stop signals:
//
//	{"action": "join",  "executionId": "<uuid>"}
//	{"action": "leave", "executionId": "<uuid>"}
//	{"action": "pause", "executionId": "<uuid>"}
//	{"action": "stop",  "executionId": "<uuid>"}
type Gateway struct {
	channel *Channel
	logger  *zap.Logger
}

// NewGateway creates a WebSocket gateway over channel.
func NewGateway(channel *Channel, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		channel: channel,
		logger:  logger.With(zap.String("component", "ws_gateway")),
	}
}

// ServeHTTP upgrades the request and pumps client messages until the
// connection closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	sub := &wsSubscriber{
		id:     uuid.NewString(),
		conn:   conn,
		logger: g.logger,
	}
	defer func() {
		g.channel.HandleDisconnect(sub.id)
		sub.close()
	}()

	g.logger.Debug("websocket client connected", zap.String("subscriber", sub.id))

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			g.logger.Debug("websocket client gone",
				zap.String("subscriber", sub.id),
				zap.Error(err),
			)
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.Warn("malformed client message",
				zap.String("subscriber", sub.id),
				zap.Error(err),
			)
			continue
		}

		g.handle(sub, msg)
	}
}

func (g *Gateway) handle(sub *wsSubscriber, msg clientMessage) {
	switch msg.Action {
	case "join":
		if msg.ExecutionID == "" {
			return
		}
		g.channel.Join(sub, msg.ExecutionID)
	case "leave":
		g.channel.Leave(sub.id, msg.ExecutionID)
	case "pause":
		g.channel.RequestSignal(Signal{
			Kind:        SignalPause,
			ExecutionID: msg.ExecutionID,
			RequestedBy: sub.id,
		})
	case "stop":
		g.channel.RequestSignal(Signal{
			Kind:        SignalStop,
			ExecutionID: msg.ExecutionID,
			RequestedBy: sub.id,
		})
	default:
		g.logger.Warn("unknown client action",
			zap.String("subscriber", sub.id),
			zap.String("action", msg.Action),
		)
	}
}
