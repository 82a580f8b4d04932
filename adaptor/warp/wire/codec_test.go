package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMarshal_RoundTripsThroughDecodeRaw(t *testing.T) {
	req := Request{
		TaskContext: TaskContext{
			Tasks: []Task{{
				ID:     "task-1",
				Status: "in_progress",
				Messages: []TaskMessage{
					{ID: "m1", UserQuery: "list files"},
					{ID: "m2", AgentText: "sure"},
				},
			}},
			ActiveTaskID: "task-1",
		},
		Input: Input{
			Context: InputContext{Pwd: "/tmp", Home: "/root"},
			UserInputs: UserInputs{Inputs: []UserInputEntry{{UserQuery: "list files"}}},
		},
		Settings: Settings{Model: "claude-4-5-sonnet", RulesEnabled: true, SupportedTools: []string{"RUN_SHELL_COMMAND"}},
		Metadata: Metadata{ConversationID: "conv-1"},
	}

	b := req.Marshal()
	raw, err := DecodeRaw(b)
	require.NoError(t, err)

	tcRaw, ok := raw.Message(fieldRequestTaskContext)
	require.True(t, ok)
	activeID, _ := tcRaw.String(fieldTaskContextActiveTaskID)
	assert.Equal(t, "task-1", activeID)

	settingsRaw, ok := raw.Message(fieldRequestSettings)
	require.True(t, ok)
	model, _ := settingsRaw.String(fieldSettingsModel)
	assert.Equal(t, "claude-4-5-sonnet", model)

	metaRaw, ok := raw.Message(fieldRequestMetadata)
	require.True(t, ok)
	convID, _ := metaRaw.String(fieldMetadataConversationID)
	assert.Equal(t, "conv-1", convID)
}

func TestToolCallMarshal_RunShellCommand(t *testing.T) {
	tc := ToolCall{
		ID:       "call_1",
		WarpType: "RUN_SHELL_COMMAND",
		RunShellCommand: &RunShellCommand{
			Command:    "ls -la",
			IsReadOnly: true,
		},
	}
	raw, err := DecodeRaw(tc.Marshal())
	require.NoError(t, err)

	name, _ := raw.String(fieldToolCallName)
	assert.Equal(t, "RUN_SHELL_COMMAND", name)

	rsc, ok := raw.Message(fieldToolCallRunShellCommand)
	require.True(t, ok)
	cmd, _ := rsc.String(fieldRunShellCommandCommand)
	assert.Equal(t, "ls -la", cmd)
	readOnly, _ := rsc.Bool(fieldRunShellCommandIsReadOnly)
	assert.True(t, readOnly)
}

func TestDecodeResponseEvent_Init(t *testing.T) {
	b := NewBuilder()
	init := NewBuilder()
	init.AppendString(fieldInitConversationID, "conv-42")
	init.AppendString(fieldInitRequestID, "req-7")
	b.AppendMessage(fieldEventInit, init.Bytes())

	ev, err := DecodeResponseEvent(b.Bytes())
	require.NoError(t, err)
	require.NotNil(t, ev.Init)
	assert.Equal(t, "conv-42", ev.Init.ConversationID)
	assert.Equal(t, "req-7", ev.Init.RequestID)
}

func TestDecodeResponseEvent_FinishedSumsTokenUsage(t *testing.T) {
	b := NewBuilder()
	fin := NewBuilder()
	fin.AppendString(fieldFinishedReason, "done")
	u1 := NewBuilder()
	u1.AppendInt64(fieldUsageInput, 10)
	u1.AppendInt64(fieldUsageOutput, 5)
	fin.AppendMessage(fieldFinishedTokenUsage, u1.Bytes())
	u2 := NewBuilder()
	u2.AppendInt64(fieldUsageInput, 3)
	u2.AppendInt64(fieldUsageOutput, 7)
	fin.AppendMessage(fieldFinishedTokenUsage, u2.Bytes())
	b.AppendMessage(fieldEventFinished, fin.Bytes())

	ev, err := DecodeResponseEvent(b.Bytes())
	require.NoError(t, err)
	require.NotNil(t, ev.Finished)
	assert.Equal(t, "done", ev.Finished.Reason)
	require.Len(t, ev.Finished.TokenUsage, 2)
	assert.EqualValues(t, 10, ev.Finished.TokenUsage[0].InputTokens)
	assert.EqualValues(t, 3, ev.Finished.TokenUsage[1].InputTokens)
}

func TestDecodeResponseEvent_AppendToMessageContentTextDelta(t *testing.T) {
	b := NewBuilder()
	ca := NewBuilder()
	action := NewBuilder()
	msg := NewBuilder()
	ao := NewBuilder()
	ao.AppendString(fieldAgentOutputText, "hello")
	msg.AppendMessage(fieldTaskMessageAgentOutput, ao.Bytes())
	action.AppendMessage(fieldAppendContentMessage, msg.Bytes())
	ca.AppendMessage(fieldActionAppendContent, action.Bytes())
	b.AppendMessage(fieldEventClientActions, ca.Bytes())

	ev, err := DecodeResponseEvent(b.Bytes())
	require.NoError(t, err)
	require.Len(t, ev.ClientActions, 1)
	assert.True(t, ev.ClientActions[0].HasAppend)
	assert.False(t, ev.ClientActions[0].AppendReasoning)
	assert.Equal(t, "hello", ev.ClientActions[0].AppendText)
}

func TestDecodeRaw_UnknownFieldsAreIgnored(t *testing.T) {
	b := NewBuilder()
	b.AppendString(99, "unexpected")
	b.AppendString(fieldMetadataConversationID, "conv-x")
	raw, err := DecodeRaw(b.Bytes())
	require.NoError(t, err)
	v, ok := raw.String(fieldMetadataConversationID)
	assert.True(t, ok)
	assert.Equal(t, "conv-x", v)
}
