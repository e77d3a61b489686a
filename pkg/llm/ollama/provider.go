package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codeassist-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL string
	Client  *http.Client
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

func NewOllamaProvider(baseURL string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

// --- Request structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Name() string {
	return "ollama"
}

func (o *OllamaProvider) Available() bool {
	// Local backend, no credential required.
	return o.BaseURL != ""
}

func (o *OllamaProvider) Models() []llm.ModelInfo {
	return []llm.ModelInfo{
		{ModelId: "llama3", ContextWindow: 8192, MaxOutputTokens: 4096, Features: []string{"streaming", "tools"}},
		{ModelId: "qwen2.5-coder", ContextWindow: 32768, MaxOutputTokens: 8192, Features: []string{"streaming", "tools"}},
		{ModelId: "deepseek-r1", ContextWindow: 65536, MaxOutputTokens: 8192, Features: []string{"streaming", "reasoning"}},
	}
}

// Stream opens an NDJSON chat stream. Ollama emits one JSON object per
// line; the relay reassembles lines split across reads.
func (o *OllamaProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (<-chan llm.Fragment, error) {
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.SystemPreamble != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.SystemPreamble})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages = append(messages, ollamaMessage{Role: role, Content: msg.Content})
	}

	reqPayload := ollamaChatRequest{
		Model:    req.ModelId,
		Messages: messages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature: req.Temperature,
		},
	}
	if req.MaxOutputTokens > 0 {
		reqPayload.Options.NumPredict = req.MaxOutputTokens
	}
	for _, tool := range req.ToolDefinitions {
		reqPayload.Tools = append(reqPayload.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
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

	url := o.BaseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("ollama error: status %d", resp.StatusCode)
	}

	return llm.PumpBody(ctx, resp.Body), nil
}
