package llm

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn in a provider-agnostic format.
type Message struct {
	Role       string    `json:"role"` // "user", "assistant", "system", "tool"
	Content    string    `json:"content"`
	ToolCallId string    `json:"tool_call_id,omitempty"` // set on tool-result turns
	ToolCall   *ToolCall `json:"tool_call,omitempty"`    // set on model turns that invoked a tool
}

// ToolCall is a structured action request emitted by a model. Arguments
// are normalized to a flat string-keyed map with snake_case keys
// regardless of how the backend spelled them.
type ToolCall struct {
	Id        string            `json:"id"`
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// ToolDefinition describes a tool the client can execute.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// CompletionRequest is immutable once dispatched.
type CompletionRequest struct {
	RequestId       string
	ModelId         string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
	SystemPreamble  string
	ToolDefinitions []ToolDefinition
}

// ModelInfo describes one model a backend serves.
type ModelInfo struct {
	ModelId         string   `json:"model_id"`
	ContextWindow   int      `json:"context_window"`
	MaxOutputTokens int      `json:"max_output_tokens"`
	Features        []string `json:"features,omitempty"`
}

// Fragment is one raw network read from a backend stream. A fragment may
// end mid-record; reassembly is the relay's job, not the provider's.
type Fragment struct {
	Data []byte
	Err  error
}

// Provider is the contract for any streaming LLM backend. Adapters
// translate the canonical request at the edge; everything downstream of
// Stream speaks raw fragments only.
type Provider interface {
	// Name returns the stable backend identifier ("openai", "anthropic", "ollama").
	Name() string

	// Available reports whether the backend has a credential configured.
	Available() bool

	// Models lists the models this backend serves.
	Models() []ModelInfo

	// Stream opens a streaming completion. Fragments arrive in the
	// backend's own framing; the channel is closed when the stream ends.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan Fragment, error)
}
