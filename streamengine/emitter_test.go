package streamengine

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/httperr"
	"github.com/relaygate/core/relaycore"
)

func TestEmitter_CanonicalEventSequence(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "claude-sonnet-4-5-20250514", 10)
	e := New(rec, state, FormatCanonical, httperr.SchemaAnthropic)

	require.NoError(t, e.MessageStart())
	require.NoError(t, e.TextDelta("hello "))
	require.NoError(t, e.TextDelta("world"))
	require.NoError(t, e.ToolUse("tool_1", "Bash", `{"command":"ls"}`))
	require.NoError(t, e.Finish("end_turn", "", 3))

	body := rec.Body.String()
	events := eventNames(body)
	assert.Equal(t, []string{
		"message_start",
		"content_block_start", "content_block_delta", "content_block_delta",
		"content_block_stop",
		"content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop",
	}, events)

	assert.Equal(t, "tool_use", state.StopReason)
	assert.Equal(t, "hello world", state.FullText)
	assert.True(t, state.Finished)
}

func TestEmitter_MessageStartTwiceIsRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "model", 1)
	e := New(rec, state, FormatCanonical, httperr.SchemaAnthropic)

	require.NoError(t, e.MessageStart())
	err := e.MessageStart()
	assert.Error(t, err)
}

func TestEmitter_OpenAIFormatEndsWithDoneSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "model", 1)
	e := New(rec, state, FormatOpenAI, httperr.SchemaOpenAI)

	require.NoError(t, e.MessageStart())
	require.NoError(t, e.TextDelta("hi"))
	require.NoError(t, e.Finish("stop", "", 1))

	assert.True(t, strings.HasSuffix(strings.TrimSpace(rec.Body.String()), "data: [DONE]"))
	assert.NotContains(t, rec.Body.String(), "event:")
}

func TestEmitter_BlockIndexMonotonicallyNonDecreasing(t *testing.T) {
	rec := httptest.NewRecorder()
	state := relaycore.NewSSEState("msg_1", "model", 1)
	e := New(rec, state, FormatCanonical, httperr.SchemaAnthropic)

	require.NoError(t, e.MessageStart())
	require.NoError(t, e.TextDelta("a"))
	idx1 := state.BlockIndex
	require.NoError(t, e.ToolUse("t1", "Bash", "{}"))
	idx2 := state.BlockIndex
	assert.GreaterOrEqual(t, idx2, idx1)
	require.NoError(t, e.Finish("tool_use", "", 0))
}

func eventNames(body string) []string {
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "event: ") {
			names = append(names, strings.TrimPrefix(line, "event: "))
		}
	}
	return names
}
