package warp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/adaptor/warp/wire"
)

func TestDecodeFrame_Init(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	events, err := DecodeFrame(wire.EncodeInitEvent("conv-1", "req-1"), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventStreamInit, events[0].Type)
	assert.Equal(t, "conv-1", events[0].ConversationID)
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestDecodeFrame_TextDelta(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	events, err := DecodeFrame(wire.EncodeAppendTextEvent("hello there", false), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTextDelta, events[0].Type)
	assert.Equal(t, "hello there", events[0].Text)
}

func TestDecodeFrame_ReasoningDelta(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	events, err := DecodeFrame(wire.EncodeAppendTextEvent("thinking...", true), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventReasoningDelta, events[0].Type)
	assert.Equal(t, "thinking...", events[0].Text)
}

func TestDecodeFrame_FinishedSumsTokenUsageAndMapsStopReason(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	frame := wire.EncodeFinishedEvent("max_token_limit", []wire.TokenUsage{
		{InputTokens: 10, OutputTokens: 5, CacheReadInputTokens: 2},
		{InputTokens: 3, OutputTokens: 7, CacheCreationInputTokens: 1},
	})
	events, err := DecodeFrame(frame, sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, EventStreamFinished, ev.Type)
	assert.Equal(t, "max_tokens", ev.StopReason)
	assert.EqualValues(t, 13, ev.Usage.InputTokens)
	assert.EqualValues(t, 12, ev.Usage.OutputTokens)
	assert.EqualValues(t, 2, ev.Usage.CacheReadInputTokens)
	assert.EqualValues(t, 1, ev.Usage.CacheCreationInputTokens)
}

func TestDecodeFrame_UnknownStopReasonPassesThrough(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	events, err := DecodeFrame(wire.EncodeFinishedEvent("some_future_reason", nil), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "some_future_reason", events[0].StopReason)
}

func TestDecodeFrame_RunShellCommandToolUse(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	payload, field := wire.RunShellCommandPayload("ls -la", true, false)
	frame := wire.EncodeAddToolCallEvent("call_1", "RUN_SHELL_COMMAND", payload, field)

	events, err := DecodeFrame(frame, sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, EventToolUse, ev.Type)
	assert.Equal(t, "call_1", ev.ToolUseID)
	assert.Equal(t, "Bash", ev.ToolName)

	var input map[string]any
	require.NoError(t, json.Unmarshal(ev.ToolInput, &input))
	assert.Equal(t, "ls -la", input["command"])

	name, ok := sess.ToolNameFor("call_1")
	require.True(t, ok, "decoding a tool_use should register it in the session")
	assert.Equal(t, "Bash", name)
}

func TestDecodeFrame_ReadFilesToolUse(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	payload, field := wire.ReadFilesPayload("main.go", "util.go")
	frame := wire.EncodeAddToolCallEvent("call_2", "READ_FILES", payload, field)

	events, err := DecodeFrame(frame, sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Read", events[0].ToolName)

	var input map[string]any
	require.NoError(t, json.Unmarshal(events[0].ToolInput, &input))
	assert.Equal(t, "main.go", input["file_path"])
}

func TestDecodeFrame_ApplyFileDiffsDisambiguatesWriteVsEdit(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")

	writePayload, writeField := wire.ApplyFileDiffsPayload([]wire.NewFile{{FilePath: "new.go", Content: "package x"}}, nil)
	writeEvents, err := DecodeFrame(wire.EncodeAddToolCallEvent("call_write", "APPLY_FILE_DIFFS", writePayload, writeField), sess)
	require.NoError(t, err)
	require.Len(t, writeEvents, 1)
	assert.Equal(t, "Write", writeEvents[0].ToolName)
	var writeInput map[string]any
	require.NoError(t, json.Unmarshal(writeEvents[0].ToolInput, &writeInput))
	assert.Equal(t, "new.go", writeInput["file_path"])
	assert.Equal(t, "package x", writeInput["content"])

	editPayload, editField := wire.ApplyFileDiffsPayload(nil, []wire.Diff{{FilePath: "main.go", Search: "foo", Replace: "bar"}})
	editEvents, err := DecodeFrame(wire.EncodeAddToolCallEvent("call_edit", "APPLY_FILE_DIFFS", editPayload, editField), sess)
	require.NoError(t, err)
	require.Len(t, editEvents, 1)
	assert.Equal(t, "Edit", editEvents[0].ToolName)
	var editInput map[string]any
	require.NoError(t, json.Unmarshal(editEvents[0].ToolInput, &editInput))
	assert.Equal(t, "foo", editInput["old_string"])
	assert.Equal(t, "bar", editInput["new_string"])
}

func TestDecodeFrame_GrepToolUse(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	payload, field := wire.GrepPayload("/repo", "TODO")
	events, err := DecodeFrame(wire.EncodeAddToolCallEvent("call_3", "GREP", payload, field), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Grep", events[0].ToolName)
	var input map[string]any
	require.NoError(t, json.Unmarshal(events[0].ToolInput, &input))
	assert.Equal(t, "TODO", input["pattern"])
	assert.Equal(t, "/repo", input["path"])
}

func TestDecodeFrame_FileGlobToolUse(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	payload, field := wire.FileGlobPayload("**/*.go")
	events, err := DecodeFrame(wire.EncodeAddToolCallEvent("call_4", "FILE_GLOB_V2", payload, field), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Glob", events[0].ToolName)
	var input map[string]any
	require.NoError(t, json.Unmarshal(events[0].ToolInput, &input))
	assert.Equal(t, "**/*.go", input["pattern"])
}

func TestDecodeFrame_CallMcpToolUsesEmbeddedNameAndArgs(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	payload, field := wire.CallMcpToolPayload("mcp__filesystem__read", `{"path":"/tmp/x"}`)
	events, err := DecodeFrame(wire.EncodeAddToolCallEvent("call_5", "CALL_MCP_TOOL", payload, field), sess)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "mcp__filesystem__read", events[0].ToolName)
	var input map[string]any
	require.NoError(t, json.Unmarshal(events[0].ToolInput, &input))
	assert.Equal(t, "/tmp/x", input["path"])
}
