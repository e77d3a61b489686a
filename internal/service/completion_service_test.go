package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/config"
	"codeassist-be/internal/entity"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/repository/memory"
	"codeassist-be/pkg/llm"
	"codeassist-be/pkg/llm/factory"
	"codeassist-be/pkg/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned fragment sequences, one script per
// Stream call, and records every request it receives.
type scriptedProvider struct {
	scripts  [][]string
	requests []*llm.CompletionRequest
}

func (p *scriptedProvider) Name() string            { return "scripted" }
func (p *scriptedProvider) Available() bool         { return true }
func (p *scriptedProvider) Models() []llm.ModelInfo { return nil }

func (p *scriptedProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.Fragment, error) {
	script := p.scripts[len(p.requests)]
	p.requests = append(p.requests, req)

	out := make(chan llm.Fragment, len(script))
	for _, data := range script {
		out <- llm.Fragment{Data: []byte(data)}
	}
	close(out)
	return out, nil
}

func newCompletionFixture(provider llm.Provider) (ICompletionService, *memory.TurnContextStore) {
	registry := factory.NewRegistry(config.BackendConfig{})
	if provider != nil {
		registry.Register("scripted", provider)
	}
	turns := memory.NewTurnContextStore(time.Minute, time.Minute)
	svc := NewCompletionService(registry, relay.NewRelay(nopLogger{}), turns, nopLogger{})
	return svc, turns
}

func TestCompleteWithoutCredentialIsNotConfigured(t *testing.T) {
	svc, _ := newCompletionFixture(nil)
	client := newTestClient()

	err := svc.Complete(context.Background(), client, &protocol.CompletionRequestPayload{
		RequestId: "req-1",
		BackendId: "openai",
		ModelId:   "gpt-4o",
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Stream:    true,
	})

	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotConfigured, apperr.CodeOf(err))
	assert.Empty(t, drainEnvelopes(client), "nothing may be streamed before dispatch is refused")
}

func TestStreamingToolCallRoundTrip(t *testing.T) {
	toolCallRecord := `{"message":{"content":"Let me check.","tool_calls":[{"id":"call-42",` +
		`"function":{"name":"read_file","arguments":{"filePath":"main.go"}}}]},"done":false}` + "\n"
	provider := &scriptedProvider{
		scripts: [][]string{
			// First turn: one record split across three reads, ending in
			// a tool invocation.
			{toolCallRecord[:40], toolCallRecord[40:95], toolCallRecord[95:]},
			// Second turn: the answer after the tool result comes back.
			{
				`{"message":{"content":"It declares package main."},"done":false}` + "\n",
				`{"done":true,"prompt_eval_count":10,"eval_count":5}` + "\n",
			},
		},
	}
	svc, turns := newCompletionFixture(provider)
	client := newTestClient()

	err := svc.Complete(context.Background(), client, &protocol.CompletionRequestPayload{
		RequestId: "req-1",
		BackendId: "scripted",
		ModelId:   "m1",
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "what is in main.go?"}},
		Stream:    true,
	})
	require.NoError(t, err)

	envs := drainEnvelopes(client)
	require.NotEmpty(t, envs)
	assert.Equal(t, protocol.KindStreamStart, envs[0].Type)

	var chunks []string
	var ends []protocol.StreamEndPayload
	for _, env := range envs {
		switch env.Type {
		case protocol.KindStreamChunk:
			var c protocol.StreamChunkPayload
			require.NoError(t, json.Unmarshal(env.Payload, &c))
			chunks = append(chunks, c.Text)
		case protocol.KindStreamEnd:
			var e protocol.StreamEndPayload
			require.NoError(t, json.Unmarshal(env.Payload, &e))
			ends = append(ends, e)
		}
	}
	assert.Equal(t, []string{"Let me check."}, chunks)
	require.Len(t, ends, 1, "exactly one terminal event per turn")
	require.NotNil(t, ends[0].ToolCall)
	assert.Equal(t, "call-42", ends[0].ToolCall.Id)
	assert.Equal(t, "read_file", ends[0].ToolCall.Name)
	assert.Equal(t, map[string]string{"file_path": "main.go"}, ends[0].ToolCall.Arguments)

	parked, found := turns.Get("req-1")
	require.True(t, found, "turn must be parked while the tool runs")
	require.NotNil(t, parked.PendingCall)
	assert.Equal(t, "call-42", parked.PendingCall.Id)

	err = svc.HandleToolResult(context.Background(), client, &protocol.ToolExecutionResultPayload{
		RequestId:  "req-1",
		ToolCallId: "call-42",
		ToolName:   "read_file",
		Result:     "package main",
	})
	require.NoError(t, err)

	require.Len(t, provider.requests, 2)
	resumed := provider.requests[1].Messages
	require.Len(t, resumed, 3, "prior turn plus assistant call plus tool result")
	assert.Equal(t, llm.RoleAssistant, resumed[1].Role)
	assert.Equal(t, llm.RoleTool, resumed[2].Role)
	assert.Equal(t, "call-42", resumed[2].ToolCallId)
	assert.Equal(t, "package main", resumed[2].Content)

	envs = drainEnvelopes(client)
	chunks = nil
	ends = nil
	for _, env := range envs {
		switch env.Type {
		case protocol.KindStreamChunk:
			var c protocol.StreamChunkPayload
			require.NoError(t, json.Unmarshal(env.Payload, &c))
			chunks = append(chunks, c.Text)
		case protocol.KindStreamEnd:
			var e protocol.StreamEndPayload
			require.NoError(t, json.Unmarshal(env.Payload, &e))
			ends = append(ends, e)
		}
	}
	assert.Equal(t, []string{"It declares package main."}, chunks)
	require.Len(t, ends, 1)
	assert.True(t, ends[0].Success)
	assert.Nil(t, ends[0].ToolCall)
	assert.Equal(t, 15, ends[0].TokensUsed)

	assert.Equal(t, 0, turns.Count(), "resumed turn must leave nothing parked")
}

func TestToolResultWithMismatchedCallIdIsRejected(t *testing.T) {
	svc, turns := newCompletionFixture(&scriptedProvider{})
	client := newTestClient()

	turns.Put(&entity.TurnContext{
		RequestId:   "req-1",
		BackendId:   "scripted",
		ModelId:     "m1",
		Streaming:   true,
		PendingCall: &llm.ToolCall{Id: "call-1", Name: "list_dir"},
		CreatedAt:   time.Now(),
	})

	err := svc.HandleToolResult(context.Background(), client, &protocol.ToolExecutionResultPayload{
		RequestId:  "req-1",
		ToolCallId: "call-other",
		ToolName:   "list_dir",
		Result:     "src/",
	})

	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidationError, apperr.CodeOf(err))

	parked, found := turns.Get("req-1")
	require.True(t, found, "a rejected result must leave the turn parked")
	assert.Equal(t, "call-1", parked.PendingCall.Id)
	assert.Empty(t, drainEnvelopes(client))
}
