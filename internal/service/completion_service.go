package service

import (
	"context"
	"time"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/entity"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/internal/protocol"
	"codeassist-be/internal/repository/memory"
	"codeassist-be/internal/websocket"
	"codeassist-be/pkg/llm"
	"codeassist-be/pkg/llm/factory"
	"codeassist-be/pkg/relay"
)

type ICompletionService interface {
	ListProviders(ctx context.Context, client *websocket.Client) error
	ListModels(ctx context.Context, client *websocket.Client, req *protocol.ProviderModelsRequestPayload) error
	Complete(ctx context.Context, client *websocket.Client, req *protocol.CompletionRequestPayload) error
	HandleToolResult(ctx context.Context, client *websocket.Client, req *protocol.ToolExecutionResultPayload) error
}

type completionService struct {
	registry *factory.Registry
	relay    *relay.Relay
	turns    *memory.TurnContextStore
	logger   logger.ILogger
}

func NewCompletionService(registry *factory.Registry, streamRelay *relay.Relay, turns *memory.TurnContextStore, log logger.ILogger) ICompletionService {
	return &completionService{
		registry: registry,
		relay:    streamRelay,
		turns:    turns,
		logger:   log,
	}
}

func (s *completionService) ListProviders(ctx context.Context, client *websocket.Client) error {
	statuses := s.registry.List()
	providers := make([]protocol.ProviderStatus, 0, len(statuses))
	for backendId, available := range statuses {
		providers = append(providers, protocol.ProviderStatus{
			BackendId: backendId,
			Available: available,
		})
	}
	client.SendEnvelope(protocol.MustEnvelope(protocol.KindProviderList, protocol.ProviderListPayload{
		Providers: providers,
	}))
	return nil
}

func (s *completionService) ListModels(ctx context.Context, client *websocket.Client, req *protocol.ProviderModelsRequestPayload) error {
	provider, ok := s.registry.Get(req.BackendId)
	if !ok {
		return apperr.NotConfigured(req.BackendId)
	}

	client.SendEnvelope(protocol.MustEnvelope(protocol.KindProviderModels, protocol.ProviderModelsPayload{
		BackendId: req.BackendId,
		Models:    provider.Models(),
	}))
	return nil
}

func (s *completionService) Complete(ctx context.Context, client *websocket.Client, req *protocol.CompletionRequestPayload) error {
	var temperature float64
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	turn := &entity.TurnContext{
		RequestId:       req.RequestId,
		BackendId:       req.BackendId,
		ModelId:         req.ModelId,
		PriorMessages:   req.Messages,
		CreatedAt:       time.Now(),
		Temperature:     temperature,
		MaxOutputTokens: req.MaxTokens,
		SystemPreamble:  req.SystemPreamble,
		Streaming:       req.Stream,
		ToolDefinitions: req.ToolDefinitions,
	}
	return s.runTurn(ctx, client, turn)
}

// HandleToolResult resumes a paused multi-turn completion with the
// client's tool output. An unknown or expired request id surfaces as
// NO_ACTIVE_CONVERSATION.
func (s *completionService) HandleToolResult(ctx context.Context, client *websocket.Client, req *protocol.ToolExecutionResultPayload) error {
	result := req.Result
	if req.IsError {
		result = req.ErrorDetails
		if result == "" {
			result = req.Result
		}
		if result == "" {
			result = "tool execution failed"
		}
	}

	parked, found := s.turns.Get(req.RequestId)
	if !found {
		return apperr.NoActiveConversation(req.RequestId)
	}
	if parked.PendingCall != nil && req.ToolCallId != parked.PendingCall.Id {
		return apperr.Validation("tool_call_id does not match the pending call")
	}

	next, err := s.turns.AppendToolResult(req.RequestId, result)
	if err != nil {
		return err
	}
	return s.runTurn(ctx, client, next)
}

func (s *completionService) runTurn(ctx context.Context, client *websocket.Client, turn *entity.TurnContext) error {
	provider, ok := s.registry.Get(turn.BackendId)
	if !ok {
		return apperr.NotConfigured(turn.BackendId)
	}
	if !provider.Available() {
		return apperr.NotConfigured(turn.BackendId)
	}

	completion := &llm.CompletionRequest{
		RequestId:       turn.RequestId,
		ModelId:         turn.ModelId,
		Messages:        turn.PriorMessages,
		Temperature:     turn.Temperature,
		MaxOutputTokens: turn.MaxOutputTokens,
		SystemPreamble:  turn.SystemPreamble,
		ToolDefinitions: turn.ToolDefinitions,
	}

	events, err := s.relay.Relay(ctx, completion, provider)
	if err != nil {
		return apperr.BackendError(err)
	}

	if turn.Streaming {
		s.forwardStream(client, turn, events)
	} else {
		s.aggregate(client, turn, events)
	}
	return nil
}

// forwardStream translates canonical relay events into protocol
// messages, in arrival order. A tool call pauses the turn: context is
// parked in the store until the client reports the tool's result.
func (s *completionService) forwardStream(client *websocket.Client, turn *entity.TurnContext, events <-chan relay.StreamEvent) {
	for ev := range events {
		switch ev.Type {
		case relay.EventStarted:
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindStreamStart, protocol.StreamStartPayload{
				RequestId: turn.RequestId,
			}))

		case relay.EventAnswerChunk:
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindStreamChunk, protocol.StreamChunkPayload{
				RequestId: turn.RequestId,
				Text:      ev.Text,
			}))

		case relay.EventReasoningChunk:
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindReasoningChunk, protocol.StreamChunkPayload{
				RequestId: turn.RequestId,
				Text:      ev.Text,
			}))

		case relay.EventToolCall:
			// Forwarded with the terminal event; nothing to emit yet.

		case relay.EventCompleted:
			if ev.ToolCall != nil {
				s.parkTurn(turn, ev)
			}
			end := protocol.StreamEndPayload{
				RequestId:  turn.RequestId,
				TokensUsed: ev.TokensUsed,
				Success:    ev.Success,
				ToolCall:   ev.ToolCall,
			}
			if ev.Err != nil {
				end.Error = ev.Err.Error()
			}
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindStreamEnd, end))

		case relay.EventFailed:
			end := protocol.StreamEndPayload{
				RequestId: turn.RequestId,
				Success:   false,
			}
			if ev.Err != nil {
				end.Error = ev.Err.Error()
			}
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindStreamEnd, end))
		}
	}
}

// aggregate drains the stream and replies with one completion response.
func (s *completionService) aggregate(client *websocket.Client, turn *entity.TurnContext, events <-chan relay.StreamEvent) {
	for ev := range events {
		switch ev.Type {
		case relay.EventCompleted:
			if ev.ToolCall != nil {
				s.parkTurn(turn, ev)
			}
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindCompletionResponse, protocol.CompletionResponsePayload{
				RequestId:  turn.RequestId,
				Text:       ev.AccumulatedText,
				TokensUsed: ev.TokensUsed,
				ToolCall:   ev.ToolCall,
			}))

		case relay.EventFailed:
			errMsg := "stream failed"
			if ev.Err != nil {
				errMsg = ev.Err.Error()
			}
			client.SendEnvelope(protocol.MustEnvelope(protocol.KindError, protocol.ErrorPayload{
				Code:      apperr.CodeBackendError,
				Message:   errMsg,
				RequestId: turn.RequestId,
			}))
		}
	}
}

func (s *completionService) parkTurn(turn *entity.TurnContext, ev relay.StreamEvent) {
	parked := *turn
	parked.PendingCall = ev.ToolCall
	parked.CreatedAt = time.Now()
	s.turns.Put(&parked)
	s.logger.Info("CompletionService", "Turn parked for tool execution", map[string]interface{}{
		"request_id": turn.RequestId,
		"tool":       ev.ToolCall.Name,
	})
}
