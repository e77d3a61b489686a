package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codeassist-be/pkg/llm"
)

type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

var _ llm.Provider = &OpenAIProvider{}

func NewOpenAIProvider(baseURL, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type chatRequest struct {
	Model         string        `json:"model"`
	Messages      []chatMessage `json:"messages"`
	Stream        bool          `json:"stream"`
	StreamOptions *streamOpts   `json:"stream_options,omitempty"`
	Temperature   float64       `json:"temperature,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Tools         []chatTool    `json:"tools,omitempty"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallId string `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Available() bool {
	return p.APIKey != ""
}

func (p *OpenAIProvider) Models() []llm.ModelInfo {
	return []llm.ModelInfo{
		{ModelId: "gpt-4o", ContextWindow: 128000, MaxOutputTokens: 16384, Features: []string{"streaming", "tools"}},
		{ModelId: "gpt-4o-mini", ContextWindow: 128000, MaxOutputTokens: 16384, Features: []string{"streaming", "tools"}},
		{ModelId: "o3-mini", ContextWindow: 200000, MaxOutputTokens: 100000, Features: []string{"streaming", "tools", "reasoning"}},
	}
}

// Stream opens an SSE chat-completions stream ("data: {...}" frames,
// terminated by "data: [DONE]").
func (p *OpenAIProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.Fragment, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPreamble != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPreamble})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{
			Role:       role,
			Content:    msg.Content,
			ToolCallId: msg.ToolCallId,
		})
	}

	reqPayload := chatRequest{
		Model:         req.ModelId,
		Messages:      messages,
		Stream:        true,
		StreamOptions: &streamOpts{IncludeUsage: true},
		Temperature:   req.Temperature,
		MaxTokens:     req.MaxOutputTokens,
	}
	for _, tool := range req.ToolDefinitions {
		reqPayload.Tools = append(reqPayload.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("openai error: status %d", resp.StatusCode)
	}

	return llm.PumpBody(ctx, resp.Body), nil
}
