package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestClient() *websocket.Client {
	hub := websocket.NewHub(nil, nopLogger{})
	session := websocket.NewSession("sess-1")
	return websocket.NewClient(hub, nil, session, 20*time.Second)
}

func envelope(t *testing.T, kind protocol.MessageKind, payload interface{}) []byte {
	t.Helper()
	env, err := protocol.NewEnvelope(kind, payload)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func receive(t *testing.T, client *websocket.Client) protocol.Envelope {
	t.Helper()
	select {
	case data := <-client.Send:
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no reply")
		return protocol.Envelope{}
	}
}

func errorCode(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	require.Equal(t, protocol.KindError, env.Type)
	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload.Code
}

func TestUnknownKindProducesTypedError(t *testing.T) {
	r := NewRouter(false, nopLogger{})
	client := newTestClient()

	r.HandleMessage(context.Background(), client, envelope(t, "no_such_kind", nil))

	assert.Equal(t, apperr.CodeUnknownMessageType, errorCode(t, receive(t, client)))
}

func TestMalformedEnvelopeProducesValidationError(t *testing.T) {
	r := NewRouter(false, nopLogger{})
	client := newTestClient()

	r.HandleMessage(context.Background(), client, []byte("{not json"))

	assert.Equal(t, apperr.CodeValidationError, errorCode(t, receive(t, client)))
}

func TestUnauthenticatedSessionFailsClosed(t *testing.T) {
	r := NewRouter(true, nopLogger{})
	handled := false
	r.Register(protocol.KindCompletionRequest, func(ctx context.Context, c *websocket.Client, payload json.RawMessage) error {
		handled = true
		return nil
	})
	client := newTestClient()

	r.HandleMessage(context.Background(), client, envelope(t, protocol.KindCompletionRequest, protocol.CompletionRequestPayload{RequestId: "req-1"}))

	assert.False(t, handled)
	env := receive(t, client)
	assert.Equal(t, apperr.CodeUnauthorized, errorCode(t, env))

	var payload protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "req-1", payload.RequestId)
}

func TestAuthExemptKindsPassUnauthenticated(t *testing.T) {
	for _, kind := range []protocol.MessageKind{
		protocol.KindPing,
		protocol.KindAuthenticate,
		protocol.KindProviderList,
		protocol.KindProviderModels,
	} {
		t.Run(string(kind), func(t *testing.T) {
			r := NewRouter(true, nopLogger{})
			handled := false
			r.Register(kind, func(ctx context.Context, c *websocket.Client, payload json.RawMessage) error {
				handled = true
				return nil
			})
			client := newTestClient()

			r.HandleMessage(context.Background(), client, envelope(t, kind, nil))

			assert.True(t, handled)
		})
	}
}

func TestAuthenticatedSessionPassesGate(t *testing.T) {
	r := NewRouter(true, nopLogger{})
	handled := false
	r.Register(protocol.KindSearchRequest, func(ctx context.Context, c *websocket.Client, payload json.RawMessage) error {
		handled = true
		return nil
	})
	client := newTestClient()
	client.Session.BindSubject("user-1")

	r.HandleMessage(context.Background(), client, envelope(t, protocol.KindSearchRequest, nil))

	assert.True(t, handled)
}

func TestAuthDisabledSkipsGate(t *testing.T) {
	r := NewRouter(false, nopLogger{})
	handled := false
	r.Register(protocol.KindSearchRequest, func(ctx context.Context, c *websocket.Client, payload json.RawMessage) error {
		handled = true
		return nil
	})
	client := newTestClient()

	r.HandleMessage(context.Background(), client, envelope(t, protocol.KindSearchRequest, nil))

	assert.True(t, handled)
}

func TestHandlerPanicIsContained(t *testing.T) {
	r := NewRouter(false, nopLogger{})
	r.Register(protocol.KindPing, func(ctx context.Context, c *websocket.Client, payload json.RawMessage) error {
		panic("handler exploded")
	})
	client := newTestClient()

	require.NotPanics(t, func() {
		r.HandleMessage(context.Background(), client, envelope(t, protocol.KindPing, nil))
	})

	assert.Equal(t, apperr.CodeInternalError, errorCode(t, receive(t, client)))
}

func TestHandlerErrorBecomesTypedReply(t *testing.T) {
	r := NewRouter(false, nopLogger{})
	r.Register(protocol.KindClearIndexRequest, func(ctx context.Context, c *websocket.Client, payload json.RawMessage) error {
		return apperr.Validation("workspace_id is required")
	})
	client := newTestClient()

	r.HandleMessage(context.Background(), client, envelope(t, protocol.KindClearIndexRequest, nil))

	assert.Equal(t, apperr.CodeValidationError, errorCode(t, receive(t, client)))
}
