package warp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_RecordAndLookupToolCall(t *testing.T) {
	sess := NewSession("claude-4-5-sonnet", "/tmp", "/root", "/bin/bash")
	sess.RecordToolCall("call_1", "Bash")

	name, ok := sess.ToolNameFor("call_1")
	require.True(t, ok)
	assert.Equal(t, "Bash", name)

	_, ok = sess.ToolNameFor("call_unknown")
	assert.False(t, ok)
}

func TestSession_RotateTurnChangesTurnID(t *testing.T) {
	sess := NewSession("claude-4-5-sonnet", "/tmp", "/root", "/bin/bash")
	first := sess.TurnID
	sess.RotateTurn()
	assert.NotEqual(t, first, sess.TurnID)
}

func TestSessionStore_GetOrCreateReusesExistingSession(t *testing.T) {
	store := NewSessionStore()
	a := store.GetOrCreate("conv-1", "model", "/tmp", "/root", "/bin/bash")
	a.RecordToolCall("call_1", "Bash")

	b := store.GetOrCreate("conv-1", "model", "/tmp", "/root", "/bin/bash")
	name, ok := b.ToolNameFor("call_1")
	require.True(t, ok)
	assert.Equal(t, "Bash", name)
}

func TestValidateToolResult_RejectsUnknownToolUseID(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	err := ValidateToolResult(sess, "call_missing")
	assert.Error(t, err)

	sess.RecordToolCall("call_present", "Bash")
	assert.NoError(t, ValidateToolResult(sess, "call_present"))
}
