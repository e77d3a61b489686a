package websocket

import (
	"context"
	"encoding/json"
	"time"

	"codeassist-be/internal/protocol"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	Session *Session

	// Buffered channel of outbound messages.
	Send chan []byte

	// Interval between transport pings. A session that shows no
	// liveness for 3x this interval is force-closed.
	pingInterval time.Duration

	// Canceled on disconnect so in-flight work for this session stops
	// emitting.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, session *Session, pingInterval time.Duration) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		Hub:          hub,
		Conn:         conn,
		Session:      session,
		Send:         make(chan []byte, 256),
		pingInterval: pingInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Context is canceled when the session disconnects.
func (c *Client) Context() context.Context {
	return c.ctx
}

// SendEnvelope queues an envelope for delivery. Drops with a warning if
// the transport is gone or the buffer is full, never blocks.
func (c *Client) SendEnvelope(env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.Hub.logger.Error("Client", "Envelope marshal failed", map[string]interface{}{
			"session_id": c.Session.Id,
			"error":      err.Error(),
		})
		return
	}
	c.Deliver(data)
}

func (c *Client) Deliver(data []byte) {
	select {
	case <-c.ctx.Done():
		c.Hub.logger.Warn("Client", "Dropping message for closed session", map[string]interface{}{"session_id": c.Session.Id})
	case c.Send <- data:
	default:
		c.Hub.logger.Warn("Client", "Send buffer full, dropping message", map[string]interface{}{"session_id": c.Session.Id})
	}
}

func (c *Client) pongWait() time.Duration {
	return 3 * c.pingInterval
}

// readPump pumps messages from the websocket connection to the router.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.Conn.SetPongHandler(func(string) error {
		c.Session.TouchLiveness()
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"session_id": c.Session.Id,
					"error":      err.Error(),
				})
			}
			break
		}

		c.Session.TouchLiveness()
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))

		if c.Hub.handler != nil {
			// Each message drives its own flow; a slow completion must
			// not stall liveness handling for the session.
			go c.Hub.handler.HandleMessage(c.ctx, c, raw)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
