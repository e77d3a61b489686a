package entity

import (
	"time"

	"codeassist-be/pkg/llm"
)

// TurnContext holds the state needed to resume a multi-turn completion
// after the client executes a requested tool. It is keyed by the request
// id of the turn that produced the tool call.
type TurnContext struct {
	RequestId     string
	BackendId     string
	ModelId       string
	ApiCredential string
	PriorMessages []llm.Message
	PendingCall   *llm.ToolCall
	CreatedAt     time.Time

	Temperature     float64
	MaxOutputTokens int
	SystemPreamble  string
	Streaming       bool
	ToolDefinitions []llm.ToolDefinition
}

// WithToolRoundTrip returns the message history extended by the pending
// assistant tool invocation and the client-provided result, in that
// order. One round trip always appends exactly two entries.
func (t *TurnContext) WithToolRoundTrip(result string) []llm.Message {
	messages := make([]llm.Message, 0, len(t.PriorMessages)+2)
	messages = append(messages, t.PriorMessages...)
	messages = append(messages, llm.Message{
		Role:     llm.RoleAssistant,
		ToolCall: t.PendingCall,
	})
	toolMsg := llm.Message{
		Role:    llm.RoleTool,
		Content: result,
	}
	if t.PendingCall != nil {
		toolMsg.ToolCallId = t.PendingCall.Id
	}
	messages = append(messages, toolMsg)
	return messages
}
