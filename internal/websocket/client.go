package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client frames.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Server frames.
const (
	FrameEvent        = "event"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FramePong         = "pong"
	FrameError        = "error"
)

// ClientFrame is a control message sent by the browser.
type ClientFrame struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
}

// ServerFrame wraps everything written to the socket. Data carries the
// notification envelope for event frames.
type ServerFrame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Client represents a single WebSocket connection
type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte

	channels map[string]bool
	mu       sync.RWMutex

	hub        *Hub
	authorizer *ChannelAuthorizer
	limiter    *rate.Limiter
	logger     *Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, authorizer *ChannelAuthorizer, logger *Logger) *Client {
	return &Client{
		ID:         uuid.New().String(),
		UserID:     userID,
		Conn:       conn,
		Send:       make(chan []byte, 256),
		channels:   make(map[string]bool),
		hub:        hub,
		authorizer: authorizer,
		limiter:    rate.NewLimiter(rate.Limit(2), 20),
		logger:     logger,
	}
}

// Subscribe records a channel on the client. Called by the hub.
func (c *Client) Subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

// Unsubscribe removes a channel from the client. Called by the hub.
func (c *Client) Unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// GetChannels returns a copy of all subscribed channels
func (c *Client) GetChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// SendMessage queues a frame without blocking; frames are dropped when the
// queue is full. Polling recovers anything a client misses.
func (c *Client) SendMessage(msg []byte) {
	defer func() {
		// Send may already be closed by the hub
		_ = recover()
	}()
	select {
	case c.Send <- msg:
	default:
	}
}

func (c *Client) reply(frame ServerFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.SendMessage(data)
}

func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected close", c.UserID, c.ID, err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded", c.UserID, c.ID)
			c.reply(ServerFrame{Type: FrameError, Error: "rate limited"})
			continue
		}
		c.handleFrame(ctx, bytes.TrimSpace(raw))
	}
}

func (c *Client) handleFrame(ctx context.Context, raw []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.reply(ServerFrame{Type: FrameError, Error: "malformed frame"})
		return
	}

	switch frame.Action {
	case ActionSubscribe:
		if !c.authorizer.CanSubscribe(ctx, c.UserID, frame.Channel) {
			c.logger.Warn("subscription denied", c.UserID, c.ID, zap.String("channel", frame.Channel))
			c.reply(ServerFrame{Type: FrameError, Channel: frame.Channel, Error: "forbidden"})
			return
		}
		if !c.IsSubscribed(frame.Channel) {
			c.hub.Subscribe(c, frame.Channel)
		}
		c.reply(ServerFrame{Type: FrameSubscribed, Channel: frame.Channel})
	case ActionUnsubscribe:
		c.hub.Unsubscribe(c, frame.Channel)
		c.reply(ServerFrame{Type: FrameUnsubscribed, Channel: frame.Channel})
	case ActionPing:
		c.reply(ServerFrame{Type: FramePong})
	default:
		c.reply(ServerFrame{Type: FrameError, Error: "unknown action"})
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
