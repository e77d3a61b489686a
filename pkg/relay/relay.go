package relay

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeassist-be/internal/pkg/logger"
	"codeassist-be/pkg/llm"
)

// DefaultFragmentTimeout bounds the wait for the continuation of a
// record split across fragments. A stalled backend stream must never
// block forward progress indefinitely.
const DefaultFragmentTimeout = 30 * time.Second

// Relay consumes a backend's raw fragment stream and re-emits the
// canonical StreamEvent sequence.
type Relay struct {
	logger          logger.ILogger
	fragmentTimeout time.Duration
}

func NewRelay(log logger.ILogger) *Relay {
	return &Relay{
		logger:          log,
		fragmentTimeout: DefaultFragmentTimeout,
	}
}

// NewRelayWithTimeout is used by tests to shrink the continuation wait.
func NewRelayWithTimeout(log logger.ILogger, timeout time.Duration) *Relay {
	return &Relay{
		logger:          log,
		fragmentTimeout: timeout,
	}
}

// Relay opens the backend stream and returns the canonical event
// sequence, terminated by exactly one Completed or Failed event. Events
// are emitted in fragment-arrival order. Emission stops when ctx is
// cancelled; in-flight work simply stops sending.
func (r *Relay) Relay(ctx context.Context, req *llm.CompletionRequest, backend llm.Provider) (<-chan StreamEvent, error) {
	frags, err := backend.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 16)
	go r.run(ctx, req, frags, events)
	return events, nil
}

type relayState struct {
	accumulated      strings.Builder
	toolCall         *llm.ToolCall
	promptTokens     int
	completionTokens int
	usageReported    bool
}

func (r *Relay) run(ctx context.Context, req *llm.CompletionRequest, frags <-chan llm.Fragment, events chan<- StreamEvent) {
	defer close(events)

	if !r.emit(ctx, events, StreamEvent{Type: EventStarted}) {
		return
	}

	state := &relayState{}
	var buffer []byte

	timer := time.NewTimer(r.fragmentTimeout)
	defer timer.Stop()

	for {
		// The continuation timer is armed only while an incomplete
		// record is buffered.
		var timeoutC <-chan time.Time
		if len(buffer) > 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.fragmentTimeout)
			timeoutC = timer.C
		}

		select {
		case <-ctx.Done():
			return

		case frag, ok := <-frags:
			if !ok {
				buffer = r.recoverBuffer(ctx, req, buffer, state, events)
				r.complete(ctx, req, state, events, true)
				return
			}
			if frag.Err != nil {
				// Partial content already produced is still useful;
				// deliver it instead of discarding.
				r.logger.Warn("StreamRelay", "Backend stream error, delivering partial content", map[string]interface{}{
					"request_id": req.RequestId,
					"error":      frag.Err.Error(),
				})
				r.complete(ctx, req, state, events, false)
				return
			}

			buffer = append(buffer, frag.Data...)
			var records [][]byte
			records, buffer = extractRecords(buffer)
			for _, record := range records {
				if !r.handleRecord(ctx, req, record, state, events) {
					return
				}
			}

		case <-timeoutC:
			buffer = r.recoverBuffer(ctx, req, buffer, state, events)
		}
	}
}

// extractRecords splits the assembly buffer into complete
// newline-delimited records, returning the unterminated tail for the
// next read. Handles both NDJSON lines and SSE "data:" frames.
func extractRecords(buffer []byte) ([][]byte, []byte) {
	var records [][]byte

	for {
		idx := bytes.IndexByte(buffer, '\n')
		if idx < 0 {
			return records, buffer
		}

		line := buffer[:idx]
		buffer = buffer[idx+1:]

		if record, ok := normalizeLine(line); ok {
			records = append(records, record)
		}
	}
}

// normalizeLine strips SSE framing from one complete line and reports
// whether a JSON record remains.
func normalizeLine(line []byte) ([]byte, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	if bytes.HasPrefix(line, []byte("event:")) || bytes.HasPrefix(line, []byte(":")) {
		return nil, false
	}
	if bytes.HasPrefix(line, []byte("data:")) {
		line = bytes.TrimSpace(line[len("data:"):])
	}
	if len(line) == 0 || bytes.Equal(line, []byte("[DONE]")) {
		return nil, false
	}
	if line[0] != '{' {
		return nil, false
	}
	return line, true
}

// handleRecord classifies one structured record and emits the
// corresponding events. Returns false when emission was cut short by ctx.
func (r *Relay) handleRecord(ctx context.Context, req *llm.CompletionRequest, record []byte, state *relayState, events chan<- StreamEvent) bool {
	parts, ok := parseRecord(record)
	if !ok {
		r.logger.Warn("StreamRelay", "Dropping malformed record", map[string]interface{}{
			"request_id": req.RequestId,
			"bytes":      len(record),
		})
		return true
	}

	if parts.ReasoningText != "" {
		if !r.emit(ctx, events, StreamEvent{Type: EventReasoningChunk, Text: parts.ReasoningText}) {
			return false
		}
	}
	if parts.AnswerText != "" {
		state.accumulated.WriteString(parts.AnswerText)
		if !r.emit(ctx, events, StreamEvent{Type: EventAnswerChunk, Text: parts.AnswerText}) {
			return false
		}
	}
	if parts.ToolCall != nil && state.toolCall == nil {
		state.toolCall = parts.ToolCall
		if !r.emit(ctx, events, StreamEvent{Type: EventToolCall, ToolCall: parts.ToolCall}) {
			return false
		}
	}

	if parts.PromptTokens > 0 {
		state.promptTokens = parts.PromptTokens
		state.usageReported = true
	}
	if parts.CompletionTokens > 0 {
		state.completionTokens = parts.CompletionTokens
		state.usageReported = true
	}

	return true
}

var quotedPayloadRe = regexp.MustCompile(`"(?:content|text|response|thinking)"\s*:\s*("(?:[^"\\]|\\.)*")`)

// recoverBuffer applies the degradation ladder to a buffered incomplete
// record: (1) parse it as a complete structured record, (2)
// regex-extract any quoted text payload, (3) discard with a warning.
// Always returns an empty buffer so the stream keeps moving.
func (r *Relay) recoverBuffer(ctx context.Context, req *llm.CompletionRequest, buffer []byte, state *relayState, events chan<- StreamEvent) []byte {
	trimmed := bytes.TrimSpace(buffer)
	if len(trimmed) == 0 {
		return nil
	}

	if record, ok := normalizeLine(trimmed); ok {
		if _, parsed := parseRecord(record); parsed {
			r.handleRecord(ctx, req, record, state, events)
			return nil
		}
	}

	if m := quotedPayloadRe.FindSubmatch(trimmed); m != nil {
		if text, err := strconv.Unquote(string(m[1])); err == nil && text != "" {
			r.logger.Warn("StreamRelay", "Recovered text payload from truncated record", map[string]interface{}{
				"request_id": req.RequestId,
				"chars":      len(text),
			})
			state.accumulated.WriteString(text)
			r.emit(ctx, events, StreamEvent{Type: EventAnswerChunk, Text: text})
			return nil
		}
	}

	r.logger.Warn("StreamRelay", "Discarding unrecoverable stream fragment", map[string]interface{}{
		"request_id": req.RequestId,
		"bytes":      len(trimmed),
	})
	return nil
}

func (r *Relay) complete(ctx context.Context, req *llm.CompletionRequest, state *relayState, events chan<- StreamEvent, success bool) {
	accumulated := state.accumulated.String()

	// Last-resort tool-call detection: some backends inline the call as
	// formatted answer text.
	if state.toolCall == nil && accumulated != "" {
		if tc, ok := ExtractToolCall(accumulated); ok {
			state.toolCall = tc
			if !r.emit(ctx, events, StreamEvent{Type: EventToolCall, ToolCall: tc}) {
				return
			}
		}
	}

	tokens := state.promptTokens + state.completionTokens
	if !state.usageReported {
		tokens = EstimateTokens(promptChars(req)) + EstimateTokens(len(accumulated))
	}

	r.emit(ctx, events, StreamEvent{
		Type:            EventCompleted,
		Success:         success,
		TokensUsed:      tokens,
		ToolCall:        state.toolCall,
		AccumulatedText: accumulated,
	})
}

func (r *Relay) emit(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// EstimateTokens approximates token usage as ceil(chars/4). A documented
// approximation, not a billing-accurate count.
func EstimateTokens(chars int) int {
	if chars <= 0 {
		return 0
	}
	return (chars + 3) / 4
}

func promptChars(req *llm.CompletionRequest) int {
	total := len(req.SystemPreamble)
	for _, msg := range req.Messages {
		total += len(msg.Content)
	}
	return total
}
