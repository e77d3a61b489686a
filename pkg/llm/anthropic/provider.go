package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codeassist-be/pkg/llm"
)

const apiVersion = "2023-06-01"

type AnthropicProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

var _ llm.Provider = &AnthropicProvider{}

func NewAnthropicProvider(baseURL, apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type messagesRequest struct {
	Model     string       `json:"model"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature,omitempty"`
	Tools       []apiTool `json:"tools,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

func (p *AnthropicProvider) Available() bool {
	return p.APIKey != ""
}

func (p *AnthropicProvider) Models() []llm.ModelInfo {
	return []llm.ModelInfo{
		{ModelId: "claude-sonnet-4-20250514", ContextWindow: 200000, MaxOutputTokens: 64000, Features: []string{"streaming", "tools", "reasoning"}},
		{ModelId: "claude-haiku-3-5-20241022", ContextWindow: 200000, MaxOutputTokens: 8192, Features: []string{"streaming", "tools"}},
	}
}

// Stream opens an SSE messages stream (event/data frames).
func (p *AnthropicProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.Fragment, error) {
	messages := make([]apiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "model" || role == "system" {
			role = "assistant"
		}
		if msg.Role == "tool" {
			// Tool results travel as user turns on this API.
			role = "user"
		}
		messages = append(messages, apiMessage{Role: role, Content: msg.Content})
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	reqPayload := messagesRequest{
		Model:       req.ModelId,
		System:      req.SystemPreamble,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Stream:      true,
		Temperature: req.Temperature,
	}
	for _, tool := range req.ToolDefinitions {
		reqPayload.Tools = append(reqPayload.Tools, apiTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.BaseURL + "/messages"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("anthropic error: status %d", resp.StatusCode)
	}

	return llm.PumpBody(ctx, resp.Body), nil
}
