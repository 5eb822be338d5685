package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	// CommunityRoom is the shared room every feed subscriber joins.
	CommunityRoom = "community"

	// Events pushed to subscribers.
	EventChatMessage = "chat_message"
	EventChatBacklog = "chat_backlog"
	EventPollResults = "poll_results"
)

// Hub maintains room -> set of connections and broadcasts messages.
// With Redis configured every event goes through the room's channel and each instance,
// including the publisher, broadcasts what it receives exactly once.
type Hub struct {
	rooms    map[string]map[string]*Client
	subs     map[string]func() // cancel Redis subscription per room
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishRoomEvent(room, event string, payload []byte) error
}

// RedisSubscriber subscribes to room channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to its room. The room's Redis subscription is started with the
// first client and retried on later registrations while it is missing.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.Room] == nil {
		h.rooms[c.Room] = make(map[string]*Client)
	}
	h.rooms[c.Room][c.ID] = c
	h.subscribeLocked(c.Room)
	h.mu.Unlock()
	metrics.SubscribersConnected.Inc()
	h.logger.Debug("client joined room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// subscribeLocked starts the room's Redis subscription if it is not running. h.mu must be held.
func (h *Hub) subscribeLocked(room string) {
	if h.redisSub == nil {
		return
	}
	if _, ok := h.subs[room]; ok {
		return
	}
	cancel, err := h.redisSub.SubscribeRoom(room, func(event string, payload []byte) {
		h.BroadcastToRoom(room, event, json.RawMessage(payload))
	})
	if err != nil {
		h.logger.Warn("redis subscribe failed, room falls back to local delivery", zap.String("room", room), zap.Error(err))
		return
	}
	h.subs[room] = cancel
}

// subscribed reports whether events for room reach this instance through Redis.
func (h *Hub) subscribed(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[room]
	return ok
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m := h.rooms[c.Room]
	_, present := m[c.ID]
	if present {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.Room)
			if cancel, ok := h.subs[c.Room]; ok {
				cancel()
				delete(h.subs, c.Room)
			}
		}
	}
	h.mu.Unlock()
	if present {
		metrics.SubscribersConnected.Dec()
	}
	h.logger.Debug("client left room", zap.String("client_id", c.ID), zap.String("room", c.Room))
}

// BroadcastToRoom sends a message to all clients in a room on this instance.
// Slow clients whose buffer is full miss the event; they catch up through the cursor.
func (h *Hub) BroadcastToRoom(room, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		c.deliver(msg)
	}
}

// Publish delivers an event to every subscriber of room across instances.
// Through Redis when configured; the subscriber callback does the local broadcast.
// A room whose subscription is down on this instance is served locally as well, and
// a failed Redis publish falls back to local delivery.
func (h *Hub) Publish(room, event string, payload interface{}) {
	if h.redis == nil {
		h.BroadcastToRoom(room, event, payload)
		return
	}
	data, err := encode(payload)
	if err != nil {
		h.logger.Warn("encode event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.redis.PublishRoomEvent(room, event, data); err != nil {
		h.logger.Warn("redis publish failed, broadcasting locally", zap.String("event", event), zap.Error(err))
		h.BroadcastToRoom(room, event, json.RawMessage(data))
		return
	}
	if !h.subscribed(room) {
		h.BroadcastToRoom(room, event, json.RawMessage(data))
	}
}

// SubscriberCount returns the number of connected clients in a room on this instance.
func (h *Hub) SubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SendToClient sends a message to a single client of a room.
func (h *Hub) SendToClient(room, clientID, event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	c, ok := h.rooms[room][clientID]
	h.mu.RUnlock()
	if !ok || c == nil {
		return
	}
	c.deliver(msg)
}

func encode(payload interface{}) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
