package protocol

import "encoding/json"

// MessageKind tags every envelope crossing the duplex channel.
type MessageKind string

const (
	KindPing           MessageKind = "ping"
	KindPong           MessageKind = "pong"
	KindConnectSuccess MessageKind = "connect_success"

	KindAuthenticate MessageKind = "authenticate"
	KindAuthSuccess  MessageKind = "auth_success"
	KindAuthFailure  MessageKind = "auth_failure"

	KindProviderList   MessageKind = "provider_list"
	KindProviderModels MessageKind = "provider_models"

	KindCompletionRequest   MessageKind = "completion_request"
	KindStreamStart         MessageKind = "stream_start"
	KindStreamChunk         MessageKind = "stream_chunk"
	KindReasoningChunk      MessageKind = "reasoning_chunk"
	KindStreamEnd           MessageKind = "stream_end"
	KindCompletionResponse  MessageKind = "completion_response"
	KindToolExecutionResult MessageKind = "tool_execution_result"

	KindEmbeddingRequest       MessageKind = "embedding_request"
	KindEmbeddingResponse      MessageKind = "embedding_response"
	KindEmbeddingBatchRequest  MessageKind = "embedding_batch_request"
	KindEmbeddingProgress      MessageKind = "embedding_progress"
	KindEmbeddingBatchResponse MessageKind = "embedding_batch_response"

	KindSearchRequest      MessageKind = "search_request"
	KindSearchResponse     MessageKind = "search_response"
	KindClearIndexRequest  MessageKind = "clear_index_request"
	KindClearIndexResponse MessageKind = "clear_index_response"

	KindNotification MessageKind = "notification"

	KindError MessageKind = "error"
)

// StatsQuery is the reserved search query that returns namespace
// statistics instead of search results.
const StatsQuery = "__stats__"

// Envelope is the wire framing for every message in both directions.
type Envelope struct {
	Type    MessageKind     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(kind MessageKind, payload interface{}) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Type: kind}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: kind, Payload: raw}, nil
}

// MustEnvelope is NewEnvelope for payloads built from our own structs,
// which cannot fail to marshal.
func MustEnvelope(kind MessageKind, payload interface{}) *Envelope {
	env, err := NewEnvelope(kind, payload)
	if err != nil {
		panic(err)
	}
	return env
}
