package factory

import (
	"codeassist-be/internal/config"
	"codeassist-be/pkg/llm"
	"codeassist-be/pkg/llm/anthropic"
	"codeassist-be/pkg/llm/ollama"
	"codeassist-be/pkg/llm/openai"
)

// Registry holds the configured backends keyed by backend id. Static
// composition at startup; nothing is loaded per request.
type Registry struct {
	providers map[string]llm.Provider
}

func NewRegistry(cfg config.BackendConfig) *Registry {
	providers := map[string]llm.Provider{
		"openai":    openai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIKey),
		"anthropic": anthropic.NewAnthropicProvider(cfg.AnthropicURL, cfg.AnthropicKey),
		"ollama":    ollama.NewOllamaProvider(cfg.OllamaBaseURL),
	}
	return &Registry{providers: providers}
}

// Register adds or replaces a backend under the given id.
func (r *Registry) Register(backendId string, p llm.Provider) {
	r.providers[backendId] = p
}

// Get returns the provider for a backend id, or false when unknown.
func (r *Registry) Get(backendId string) (llm.Provider, bool) {
	p, ok := r.providers[backendId]
	return p, ok
}

// List returns every registered backend id with its availability.
func (r *Registry) List() map[string]bool {
	out := make(map[string]bool, len(r.providers))
	for id, p := range r.providers {
		out[id] = p.Available()
	}
	return out
}
