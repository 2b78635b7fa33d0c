package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aura-webinar/seminar-portal/internal/models"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	maxReadBytes = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Authenticator resolves a channel token to a viewer identity.
type Authenticator func(token string) (models.Viewer, error)

// TopicAuthorizer decides whether a viewer may subscribe to a topic.
type TopicAuthorizer func(ctx context.Context, topic string, viewer models.Viewer) error

// Client represents a single WebSocket subscription to one topic.
type Client struct {
	ID     string
	Topic  string
	Viewer models.Viewer
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

func newClient(hub *Hub, topic string, viewer models.Viewer, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Topic:  topic,
		Viewer: viewer,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, sendBuffer),
		logger: logger,
	}
}

func (c *Client) enqueue(event string, payload interface{}) {
	data, err := encode(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

// ServeWs handles GET /ws?topic=...&token=..., upgrades and runs the client loop.
func ServeWs(hub *Hub, logger *zap.Logger, authenticate Authenticator, authorize TopicAuthorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		topic := c.Query("topic")
		token := c.Query("token")
		if topic == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "topic and token required"})
			return
		}
		if _, _, ok := ParseTopic(topic); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid topic"})
			return
		}
		viewer, err := authenticate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}
		if authorize != nil {
			if err := authorize(c.Request.Context(), topic, viewer); err != nil {
				status := http.StatusForbidden
				if errors.Is(err, models.ErrNotFound) {
					status = http.StatusNotFound
				}
				c.JSON(status, gin.H{"success": false, "error": err.Error()})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, topic, viewer, conn, logger)
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.handle(msg)
	}
}

// handle applies one client->server message. Broadcast events are server-originated
// only; anything else from a client is answered with an error event.
func (c *Client) handle(msg WSMessage) {
	switch msg.Event {
	case EventTrack:
		c.hub.Track(c)
	case EventUntrack:
		c.hub.Untrack(c)
	default:
		c.enqueue(EventError, gin.H{"message": "unsupported event", "event": msg.Event})
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
