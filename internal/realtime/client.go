package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	replayWait   = 5 * time.Second
	maxReadBytes = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the token, not the browser
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Replayer returns the feed entries after cursor, oldest first. It is the same
// cursor-based fetch that polling clients use, so push and poll stay interchangeable.
type Replayer func(ctx context.Context, cursor int64) (interface{}, error)

// TokenValidator resolves a bearer token to the user behind it.
type TokenValidator func(token string) (uuid.UUID, error)

// Client represents a single WebSocket subscription.
type Client struct {
	ID       string
	Room     string
	UserID   uuid.UUID
	JoinedAt time.Time
	hub      *Hub
	conn     *websocket.Conn
	send     chan WSMessage
	replay   Replayer
	logger   *zap.Logger

	// While holding, live events are queued in held so that a backlog replay always
	// reaches the client before anything published during the replay.
	mu      sync.Mutex
	holding bool
	held    []WSMessage
}

// ServeWs upgrades the request and streams the community room to the client.
// Query: token (required), cursor (optional, last message id the client holds).
// With a cursor the chat_backlog event is always the first event sent; live events
// published meanwhile follow it and may repeat entries of the backlog, which clients
// drop by id once their cursor has advanced past them.
func ServeWs(hub *Hub, logger *zap.Logger, validate TokenValidator, replay Replayer) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "token required"})
			return
		}
		userID, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}
		cursor, hasCursor, err := parseCursor(c.Query("cursor"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "cursor must be a non-negative integer"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			Room:     CommunityRoom,
			UserID:   userID,
			JoinedAt: time.Now(),
			hub:      hub,
			conn:     conn,
			send:     make(chan WSMessage, 256),
			replay:   replay,
			logger:   logger,
			holding:  hasCursor,
		}
		hub.Register(client)
		go client.writePump()
		if hasCursor {
			client.sendBacklog(c.Request.Context(), cursor)
		}
		client.readPump()
	}
}

func parseCursor(raw string) (int64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, false, strconv.ErrSyntax
	}
	return n, true, nil
}

func (c *Client) sendBacklog(parent context.Context, cursor int64) {
	if c.replay == nil {
		c.release(nil)
		return
	}
	c.mu.Lock()
	c.holding = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, replayWait)
	defer cancel()
	entries, err := c.replay(ctx, cursor)
	if err != nil {
		c.logger.Warn("feed replay failed", zap.String("client_id", c.ID), zap.Int64("cursor", cursor), zap.Error(err))
		c.release(nil)
		return
	}
	data, err := encode(map[string]interface{}{
		"cursor":   cursor,
		"messages": entries,
	})
	if err != nil {
		c.release(nil)
		return
	}
	c.release(&WSMessage{Event: EventChatBacklog, Data: data})
}

// deliver queues msg for the write pump, or holds it while a replay is in flight.
// A full buffer drops the event; the client catches up through its cursor.
func (c *Client) deliver(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holding {
		if len(c.held) < cap(c.send) {
			c.held = append(c.held, msg)
		}
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// release sends backlog (if any) followed by the events held during the replay.
func (c *Client) release(backlog *WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if backlog != nil {
		select {
		case c.send <- *backlog:
		default:
		}
	}
	for _, msg := range c.held {
		select {
		case c.send <- msg:
		default:
		}
	}
	c.held = nil
	c.holding = false
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "sync":
			var payload struct {
				Cursor int64 `json:"cursor"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err == nil && payload.Cursor >= 0 {
				c.sendBacklog(context.Background(), payload.Cursor)
			}
		default:
			// messages and votes go through the HTTP API
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
