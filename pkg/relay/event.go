package relay

import "codeassist-be/pkg/llm"

// EventType discriminates the canonical stream events.
type EventType string

const (
	EventStarted        EventType = "started"
	EventAnswerChunk    EventType = "answer_chunk"
	EventReasoningChunk EventType = "reasoning_chunk"
	EventToolCall       EventType = "tool_call"
	EventCompleted      EventType = "completed"
	EventFailed         EventType = "failed"
)

// StreamEvent is the canonical event sequence every backend stream is
// normalized into. The sequence is terminated by exactly one Completed or
// Failed event.
type StreamEvent struct {
	Type EventType

	// Chunk text for AnswerChunk / ReasoningChunk.
	Text string

	// Tool invocation, set on ToolCall and optionally on Completed.
	ToolCall *llm.ToolCall

	// Completed fields. Partial content produced before a hard error is
	// still delivered: Success=false with the accumulated text.
	TokensUsed      int
	Success         bool
	AccumulatedText string

	// Failed detail.
	Err error
}
