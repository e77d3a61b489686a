package websocket

import (
	"time"

	"codeassist-be/internal/protocol"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs handles websocket requests from the peer. Blocks until the
// connection closes.
func ServeWs(hub *Hub, conn *websocket.Conn, pingInterval time.Duration) {
	session := NewSession(uuid.New().String())
	client := NewClient(hub, conn, session, pingInterval)
	client.Hub.register <- client

	go client.writePump()

	client.SendEnvelope(protocol.MustEnvelope(protocol.KindConnectSuccess, protocol.ConnectSuccessPayload{
		SessionId: session.Id,
	}))

	client.readPump() // Run readPump in current goroutine (handler)
}
