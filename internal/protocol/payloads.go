package protocol

import (
	"codeassist-be/internal/entity"
	"codeassist-be/pkg/llm"
)

type ConnectSuccessPayload struct {
	SessionId string `json:"session_id"`
}

type AuthenticatePayload struct {
	Token string `json:"token" validate:"required"`
}

type AuthSuccessPayload struct {
	SubjectId string                 `json:"subject_id"`
	SessionId string                 `json:"session_id"`
	Subject   map[string]interface{} `json:"subject,omitempty"`
}

type AuthFailurePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ProviderStatus struct {
	BackendId string `json:"backend_id"`
	Available bool   `json:"available"`
}

type ProviderListPayload struct {
	Providers []ProviderStatus `json:"providers"`
}

type ProviderModelsRequestPayload struct {
	BackendId string `json:"backend_id" validate:"required"`
}

type ProviderModelsPayload struct {
	BackendId string          `json:"backend_id"`
	Models    []llm.ModelInfo `json:"models"`
}

type CompletionRequestPayload struct {
	RequestId       string               `json:"request_id" validate:"required"`
	BackendId       string               `json:"backend_id" validate:"required"`
	ModelId         string               `json:"model_id" validate:"required"`
	Messages        []llm.Message        `json:"messages" validate:"required,min=1"`
	Temperature     *float64             `json:"temperature,omitempty"`
	MaxTokens       int                  `json:"max_tokens,omitempty"`
	SystemPreamble  string               `json:"system_preamble,omitempty"`
	Stream          bool                 `json:"stream"`
	ToolDefinitions []llm.ToolDefinition `json:"tool_definitions,omitempty"`
}

type StreamStartPayload struct {
	RequestId string `json:"request_id"`
}

type StreamChunkPayload struct {
	RequestId string `json:"request_id"`
	Text      string `json:"text"`
}

type StreamEndPayload struct {
	RequestId  string        `json:"request_id"`
	TokensUsed int           `json:"tokens_used"`
	Success    bool          `json:"success"`
	ToolCall   *llm.ToolCall `json:"tool_call,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type CompletionResponsePayload struct {
	RequestId  string        `json:"request_id"`
	Text       string        `json:"text"`
	TokensUsed int           `json:"tokens_used"`
	ToolCall   *llm.ToolCall `json:"tool_call,omitempty"`
}

type ToolExecutionResultPayload struct {
	RequestId    string `json:"request_id" validate:"required"`
	ToolCallId   string `json:"tool_call_id" validate:"required"`
	ToolName     string `json:"tool_name"`
	Result       string `json:"result"`
	IsError      bool   `json:"is_error"`
	ErrorDetails string `json:"error_details,omitempty"`
}

type EmbeddingRequestPayload struct {
	Chunk entity.EmbeddingChunk `json:"chunk" validate:"required"`
}

type EmbeddingResponsePayload struct {
	Id         string    `json:"id"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Model      string    `json:"model"`
	TokensUsed int       `json:"tokens_used"`
	Error      string    `json:"error,omitempty"`
}

type EmbeddingBatchRequestPayload struct {
	WorkspaceId string                  `json:"workspace_id"`
	Chunks      []entity.EmbeddingChunk `json:"chunks" validate:"required,min=1,dive"`
}

type EmbeddingProgressPayload struct {
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	CurrentFile string `json:"current_file"`
	FileStatus  string `json:"file_status"`
}

type EmbeddingBatchResponsePayload struct {
	Total      int      `json:"total"`
	Embeddings int      `json:"embeddings"`
	Errors     []string `json:"errors,omitempty"`
	Model      string   `json:"model"`
}

type SearchRequestPayload struct {
	Query       string            `json:"query" validate:"required"`
	WorkspaceId string            `json:"workspace_id,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
}

type SearchResponsePayload struct {
	Results []entity.SearchResult `json:"results"`
	Stats   *NamespaceStats       `json:"stats,omitempty"`
}

type NamespaceStats struct {
	Namespace string `json:"namespace"`
	Count     int64  `json:"count"`
}

type ClearIndexRequestPayload struct {
	WorkspaceId string `json:"workspace_id" validate:"required"`
}

type ClearIndexResponsePayload struct {
	DeletedCount int64 `json:"deleted_count"`
}

type NotificationPayload struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestId string `json:"request_id,omitempty"`
}
