package warp

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/httperr"
	"github.com/relaygate/core/relaycore"
	"github.com/relaygate/core/streamengine"
)

func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	return names
}

func TestRunStateMachine_TextThenToolUseThenFinish(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "claude-4-5-sonnet", 0)
	emitter := streamengine.New(rec, state, streamengine.FormatCanonical, httperr.SchemaAnthropic)
	started := false

	require.NoError(t, RunStateMachine(emitter, Event{Type: EventStreamInit, ConversationID: "c1"}, &started))
	assert.False(t, started, "stream_init carries no content-bearing frame")

	require.NoError(t, RunStateMachine(emitter, Event{Type: EventTextDelta, Text: "hi"}, &started))
	require.True(t, started)

	require.NoError(t, RunStateMachine(emitter, Event{
		Type: EventToolUse, ToolUseID: "call_1", ToolName: "Bash", ToolInput: []byte(`{"command":"ls"}`),
	}, &started))

	require.NoError(t, RunStateMachine(emitter, Event{Type: EventStreamFinished, StopReason: "end_turn"}, &started))

	events := eventNames(rec.Body.String())
	assert.Equal(t, []string{
		"message_start",
		"content_block_start", "content_block_delta", "content_block_stop",
		"content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop",
	}, events)

	assert.Equal(t, "tool_use", state.StopReason, "a tool call in the stream overrides the finished reason")
	assert.True(t, state.Finished)
}

func TestRunStateMachine_MessageStartFiresExactlyOnceAcrossDeltas(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "model", 0)
	emitter := streamengine.New(rec, state, streamengine.FormatCanonical, httperr.SchemaAnthropic)
	started := false

	require.NoError(t, RunStateMachine(emitter, Event{Type: EventTextDelta, Text: "a"}, &started))
	require.NoError(t, RunStateMachine(emitter, Event{Type: EventTextDelta, Text: "b"}, &started))
	require.NoError(t, RunStateMachine(emitter, Event{Type: EventReasoningDelta, Text: "c"}, &started))

	events := eventNames(rec.Body.String())
	assert.Equal(t, 1, countOccurrences(events, "message_start"))
}

func TestRunStateMachine_TaskBookkeepingEventsAreNoOps(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "model", 0)
	emitter := streamengine.New(rec, state, streamengine.FormatCanonical, httperr.SchemaAnthropic)
	started := false

	require.NoError(t, RunStateMachine(emitter, Event{Type: EventTaskCreated, TaskID: "t1"}, &started))
	require.NoError(t, RunStateMachine(emitter, Event{Type: EventTaskStatus, TaskID: "t1", Status: "completed"}, &started))

	assert.False(t, started)
	assert.Empty(t, rec.Body.String())
}

func TestRunStateMachine_FinishWithoutContentStillEmitsMessageStart(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "model", 0)
	emitter := streamengine.New(rec, state, streamengine.FormatCanonical, httperr.SchemaAnthropic)
	started := false

	require.NoError(t, RunStateMachine(emitter, Event{Type: EventStreamFinished, StopReason: "end_turn"}, &started))

	events := eventNames(rec.Body.String())
	assert.Equal(t, []string{"message_start", "message_delta", "message_stop"}, events)
	assert.True(t, state.Finished)
}

func countOccurrences(items []string, target string) int {
	n := 0
	for _, it := range items {
		if it == target {
			n++
		}
	}
	return n
}
