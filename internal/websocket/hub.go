package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"

	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// InboundHandler consumes one decoded frame from a connected session.
// Implemented by the protocol router; set before the hub starts serving.
type InboundHandler interface {
	HandleMessage(ctx context.Context, client *Client, raw []byte)
}

type Hub struct {
	// Registered clients map: SessionID -> Client
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance delivery of session-targeted
	// pushes (out-of-band auth lands on whichever instance holds the
	// session)
	rdb *redis.Client

	handler InboundHandler

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) SetHandler(handler InboundHandler) {
	h.handler = handler
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Session.Id] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Session registered", map[string]interface{}{"session_id": client.Session.Id})

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.Session.Id]; ok && current == client {
				delete(h.clients, client.Session.Id)
				close(client.Send)
				h.logger.Info("Hub", "Session unregistered", map[string]interface{}{"session_id": client.Session.Id})
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Get(sessionId string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[sessionId]
	return client, ok
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SendToSession delivers an envelope to one session. If the session is
// not on this instance the envelope is published to Redis so a peer
// instance can deliver it. subjectId, when non-empty, binds the session
// identity before delivery (out-of-band auth path).
func (h *Hub) SendToSession(sessionId string, subjectId string, env *protocol.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Hub", "Envelope marshal failed", map[string]interface{}{"error": err.Error()})
		return false
	}

	if client, ok := h.Get(sessionId); ok {
		if subjectId != "" {
			client.Session.BindSubject(subjectId)
		}
		client.Deliver(data)
		return true
	}

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_session_id": sessionId,
			"subject_id":        subjectId,
			"message":           json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), clusterChannel, jsonPayload)
		return true
	}

	h.logger.Warn("Hub", "Session not found for push", map[string]interface{}{"session_id": sessionId})
	return false
}

// SendToSubject delivers an envelope to every authenticated session
// bound to subjectId on this instance.
func (h *Hub) SendToSubject(subjectId string, env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, 2)
	for _, client := range h.clients {
		if client.Session.SubjectId() == subjectId {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.Deliver(data)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetSessionId string          `json:"target_session_id"`
			SubjectId       string          `json:"subject_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Cluster message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		client, ok := h.Get(payload.TargetSessionId)
		if !ok {
			continue
		}
		if payload.SubjectId != "" {
			client.Session.BindSubject(payload.SubjectId)
		}
		client.Deliver(payload.Message)
	}
}
