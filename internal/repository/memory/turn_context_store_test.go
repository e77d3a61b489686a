package memory

import (
	"testing"
	"time"

	"codeassist-be/internal/apperr"
	"codeassist-be/internal/entity"
	"codeassist-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turn(requestId string) *entity.TurnContext {
	return &entity.TurnContext{
		RequestId: requestId,
		BackendId: "ollama",
		ModelId:   "llama3",
		PriorMessages: []llm.Message{
			{Role: llm.RoleUser, Content: "list the files"},
		},
		PendingCall: &llm.ToolCall{
			Id:        "call-1",
			Name:      "list_dir",
			Arguments: map[string]string{"path": "."},
		},
		CreatedAt: time.Now(),
	}
}

func TestPutGetRemove(t *testing.T) {
	store := NewTurnContextStore(time.Minute, time.Minute)

	store.Put(turn("req-1"))

	got, found := store.Get("req-1")
	require.True(t, found)
	assert.Equal(t, "ollama", got.BackendId)

	store.Remove("req-1")
	_, found = store.Get("req-1")
	assert.False(t, found)
}

func TestTakeRemovesEntry(t *testing.T) {
	store := NewTurnContextStore(time.Minute, time.Minute)
	store.Put(turn("req-1"))

	got, err := store.Take("req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.RequestId)

	_, err = store.Take("req-1")
	assert.Equal(t, apperr.CodeNoActiveConversation, apperr.CodeOf(err))
}

func TestTakeUnknownRequestId(t *testing.T) {
	store := NewTurnContextStore(time.Minute, time.Minute)

	_, err := store.Take("never-seen")

	require.Error(t, err)
	assert.Equal(t, apperr.CodeNoActiveConversation, apperr.CodeOf(err))
}

func TestEntriesExpire(t *testing.T) {
	store := NewTurnContextStore(20*time.Millisecond, 10*time.Millisecond)
	store.Put(turn("req-1"))

	_, found := store.Get("req-1")
	require.True(t, found)

	time.Sleep(50 * time.Millisecond)

	_, err := store.Take("req-1")
	assert.Equal(t, apperr.CodeNoActiveConversation, apperr.CodeOf(err))
}

func TestAppendToolResultResumesTurn(t *testing.T) {
	store := NewTurnContextStore(time.Minute, time.Minute)
	store.Put(turn("req-1"))

	resumed, err := store.AppendToolResult("req-1", `{"files": ["a.go"]}`)
	require.NoError(t, err)

	require.Len(t, resumed.PriorMessages, 3)
	assert.Nil(t, resumed.PendingCall)
	assert.Equal(t, llm.RoleTool, resumed.PriorMessages[2].Role)

	// The parked entry is consumed; a second result has nothing to resume.
	_, err = store.AppendToolResult("req-1", "again")
	assert.Equal(t, apperr.CodeNoActiveConversation, apperr.CodeOf(err))
}

func TestSweepExpiredEvictsEagerly(t *testing.T) {
	store := NewTurnContextStore(10*time.Millisecond, time.Hour)
	store.Put(turn("req-1"))
	require.Equal(t, 1, store.Count())

	time.Sleep(20 * time.Millisecond)
	store.SweepExpired()

	assert.Equal(t, 0, store.Count())
}

func TestToolRoundTripAppendsExactlyTwoMessages(t *testing.T) {
	tc := turn("req-1")

	messages := tc.WithToolRoundTrip(`{"files": ["a.go"]}`)

	require.Len(t, messages, len(tc.PriorMessages)+2)

	assistant := messages[len(messages)-2]
	assert.Equal(t, llm.RoleAssistant, assistant.Role)
	require.NotNil(t, assistant.ToolCall)
	assert.Equal(t, "list_dir", assistant.ToolCall.Name)

	tool := messages[len(messages)-1]
	assert.Equal(t, llm.RoleTool, tool.Role)
	assert.Equal(t, "call-1", tool.ToolCallId)
	assert.Equal(t, `{"files": ["a.go"]}`, tool.Content)
}
