package router

import (
	"context"
	"encoding/json"
	"fmt"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"
)

// HandlerFunc consumes one inbound payload for a session and replies
// through the client. Returned errors become typed error envelopes.
type HandlerFunc func(ctx context.Context, client *websocket.Client, payload json.RawMessage) error

// Router dispatches inbound envelopes by message kind. Unauthenticated
// sessions are rejected fail-closed except for the exempt kinds.
type Router struct {
	handlers    map[protocol.MessageKind]HandlerFunc
	authEnabled bool
	logger      logger.ILogger
}

// Kinds a session may send before authenticating.
var authExempt = map[protocol.MessageKind]bool{
	protocol.KindPing:           true,
	protocol.KindAuthenticate:   true,
	protocol.KindProviderList:   true,
	protocol.KindProviderModels: true,
}

func NewRouter(authEnabled bool, log logger.ILogger) *Router {
	return &Router{
		handlers:    make(map[protocol.MessageKind]HandlerFunc),
		authEnabled: authEnabled,
		logger:      log,
	}
}

func (r *Router) Register(kind protocol.MessageKind, handler HandlerFunc) {
	r.handlers[kind] = handler
}

// HandleMessage implements websocket.InboundHandler. A panic inside one
// handler must not take down the connection or other sessions.
func (r *Router) HandleMessage(ctx context.Context, client *websocket.Client, raw []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.replyError(client, apperr.Validation("malformed message envelope"), "")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Router", "Handler panic recovered", map[string]interface{}{
				"session_id": client.Session.Id,
				"kind":       string(env.Type),
				"panic":      fmt.Sprintf("%v", rec),
			})
			r.replyError(client, apperr.Internal(fmt.Errorf("panic: %v", rec)), requestIdOf(env.Payload))
		}
	}()

	handler, ok := r.handlers[env.Type]
	if !ok {
		r.replyError(client, apperr.UnknownMessageType(string(env.Type)), requestIdOf(env.Payload))
		return
	}

	if r.authEnabled && !client.Session.Authenticated() && !authExempt[env.Type] {
		r.replyError(client, apperr.Unauthorized("session is not authenticated"), requestIdOf(env.Payload))
		return
	}

	if err := handler(ctx, client, env.Payload); err != nil {
		r.replyError(client, err, requestIdOf(env.Payload))
	}
}

func (r *Router) replyError(client *websocket.Client, err error, requestId string) {
	client.SendEnvelope(protocol.MustEnvelope(protocol.KindError, protocol.ErrorPayload{
		Code:      apperr.CodeOf(err),
		Message:   apperr.MessageOf(err),
		RequestId: requestId,
	}))
}

// requestIdOf best-effort extracts a request id so error replies can be
// correlated.
func requestIdOf(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var probe struct {
		RequestId string `json:"request_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.RequestId
}
