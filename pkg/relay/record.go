package relay

import (
	"encoding/json"

	"codeassist-be/pkg/llm"

	"github.com/google/uuid"
)

// recordParts is the normalized content of one structured stream record.
// A record may carry zero or more of answer text, reasoning text and a
// tool invocation; classification never conflates them.
type recordParts struct {
	AnswerText    string
	ReasoningText string
	ToolCall      *llm.ToolCall

	PromptTokens     int
	CompletionTokens int
}

// parseRecord normalizes one backend JSON record into recordParts.
// Handles the field spellings of OpenAI-style deltas, Ollama NDJSON and
// Anthropic SSE events; backend-specific shapes never leak past here.
func parseRecord(data []byte) (*recordParts, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, false
	}

	parts := &recordParts{}

	// Envelopes, outermost first. The record root is its own parent for
	// tool-call purposes.
	envelopes := []map[string]interface{}{obj}
	if msg, ok := obj["message"].(map[string]interface{}); ok {
		envelopes = append(envelopes, msg)
	}
	if delta, ok := obj["delta"].(map[string]interface{}); ok {
		envelopes = append(envelopes, delta)
	}
	if choices, ok := obj["choices"].([]interface{}); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]interface{}); ok {
			envelopes = append(envelopes, choice)
			if delta, ok := choice["delta"].(map[string]interface{}); ok {
				envelopes = append(envelopes, delta)
			}
			if msg, ok := choice["message"].(map[string]interface{}); ok {
				envelopes = append(envelopes, msg)
			}
		}
	}
	if block, ok := obj["content_block"].(map[string]interface{}); ok {
		envelopes = append(envelopes, block)
	}

	for _, env := range envelopes {
		// Reasoning text is flagged distinctly by the backend; it must
		// never be emitted as answer text.
		if s, ok := firstString(env, "thinking", "reasoning", "reasoning_content"); ok {
			parts.ReasoningText += s
		}

		if isReasoningBlock(env) {
			if s, ok := firstString(env, "text", "content"); ok {
				parts.ReasoningText += s
			}
			continue
		}

		if s, ok := firstString(env, "content", "text", "response"); ok {
			parts.AnswerText += s
		}

		if parts.ToolCall == nil {
			parts.ToolCall = structuredToolCall(env)
		}

		readUsage(env, parts)
	}

	return parts, true
}

// isReasoningBlock reports whether an Anthropic-style content block is a
// thinking block, whose text counts as reasoning even without a distinct
// text key.
func isReasoningBlock(env map[string]interface{}) bool {
	t, _ := env["type"].(string)
	return t == "thinking" || t == "thinking_delta" || t == "redacted_thinking"
}

// structuredToolCall reads a tool invocation from structured fields on
// one envelope: "tool_calls" arrays (OpenAI/Ollama) or "tool_use" blocks
// (Anthropic).
func structuredToolCall(env map[string]interface{}) *llm.ToolCall {
	if calls, ok := env["tool_calls"].([]interface{}); ok && len(calls) > 0 {
		if call, ok := calls[0].(map[string]interface{}); ok {
			return toolCallFromObject(call)
		}
	}
	if t, ok := env["type"].(string); ok && t == "tool_use" {
		return toolCallFromObject(env)
	}
	return nil
}

func toolCallFromObject(call map[string]interface{}) *llm.ToolCall {
	// OpenAI nests under "function"; Ollama and Anthropic keep the name
	// at the call level.
	target := call
	if fn, ok := call["function"].(map[string]interface{}); ok {
		target = fn
	}

	name, _ := firstString(target, "name")
	if name == "" {
		return nil
	}

	id, _ := firstString(call, "id")
	if id == "" {
		id = uuid.NewString()
	}

	var args interface{}
	for _, key := range []string{"arguments", "input", "parameters"} {
		if v, ok := target[key]; ok {
			args = v
			break
		}
	}
	if args == nil {
		if v, ok := call["input"]; ok {
			args = v
		}
	}

	return &llm.ToolCall{
		Id:        id,
		Name:      name,
		Arguments: NormalizeArguments(args),
	}
}

func readUsage(env map[string]interface{}, parts *recordParts) {
	if usage, ok := env["usage"].(map[string]interface{}); ok {
		if n, ok := intField(usage, "prompt_tokens", "input_tokens"); ok {
			parts.PromptTokens = n
		}
		if n, ok := intField(usage, "completion_tokens", "output_tokens"); ok {
			parts.CompletionTokens = n
		}
	}
	// Ollama reports counts at the record root.
	if n, ok := intField(env, "prompt_eval_count"); ok {
		parts.PromptTokens = n
	}
	if n, ok := intField(env, "eval_count"); ok {
		parts.CompletionTokens = n
	}
}

func intField(obj map[string]interface{}, keys ...string) (int, bool) {
	for _, key := range keys {
		if v, ok := obj[key].(float64); ok {
			return int(v), true
		}
	}
	return 0, false
}
