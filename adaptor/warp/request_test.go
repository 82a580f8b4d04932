package warp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/relaycore"
)

func TestBuildRequest_SeedsSingleInProgressTask(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		Messages: []relaycore.Message{
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hello"}}},
		},
	}
	sess := NewSession("claude-4-5-sonnet", "/tmp", "/root", "/bin/bash")
	wireReq, err := BuildRequest(req, "claude-4-5-sonnet", sess)
	require.NoError(t, err)

	require.Len(t, wireReq.TaskContext.Tasks, 1)
	task := wireReq.TaskContext.Tasks[0]
	assert.Equal(t, "in_progress", task.Status)
	assert.Equal(t, task.ID, wireReq.TaskContext.ActiveTaskID)
}

func TestBuildRequest_LastUserTurnSplitsIntoUserQueryAndToolResults(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		Messages: []relaycore.Message{
			{Role: relaycore.RoleAssistant, Content: []relaycore.ContentBlock{
				{Type: relaycore.BlockToolUse, ToolUseID: "call_1", Name: "Bash", Input: json.RawMessage(`{"command":"ls"}`)},
			}},
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{
				{Type: relaycore.BlockToolResult, ToolResultID: "call_1", Content: "file1\nfile2"},
				{Type: relaycore.BlockText, Text: "what else is here?"},
			}},
		},
	}
	sess := NewSession("claude-4-5-sonnet", "/tmp", "/root", "/bin/bash")
	wireReq, err := BuildRequest(req, "claude-4-5-sonnet", sess)
	require.NoError(t, err)

	require.Len(t, wireReq.Input.UserInputs.Inputs, 2)
	assert.NotNil(t, wireReq.Input.UserInputs.Inputs[0].ToolCallResult)
	assert.Equal(t, "call_1", wireReq.Input.UserInputs.Inputs[0].ToolCallResult.CallID)
	assert.Equal(t, "what else is here?", wireReq.Input.UserInputs.Inputs[1].UserQuery)

	_, ok := sess.ToolNameFor("call_1")
	assert.True(t, ok, "assistant tool_use in a prior message should register in the session")
}

func TestBuildRequest_SystemPromptBecomesProjectRule(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		System: "be terse",
		Messages: []relaycore.Message{
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}},
		},
	}
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	wireReq, err := BuildRequest(req, "model", sess)
	require.NoError(t, err)

	require.Len(t, wireReq.Input.Context.ProjectRules, 1)
	rule := wireReq.Input.Context.ProjectRules[0]
	require.Len(t, rule.ActiveRuleFiles, 1)
	assert.Equal(t, ".claude/rules.md", rule.ActiveRuleFiles[0].FilePath)
	assert.Equal(t, "be terse", rule.ActiveRuleFiles[0].Content)
}

func TestBuildRequest_ConversationIDFromSessionMetadataOrFresh(t *testing.T) {
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	req := &relaycore.CanonicalRequest{
		Metadata: json.RawMessage(`{"session_id":"sess-123"}`),
		Messages: []relaycore.Message{{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}}},
	}
	wireReq, err := BuildRequest(req, "model", sess)
	require.NoError(t, err)
	assert.Equal(t, "sess-123", wireReq.Metadata.ConversationID)

	reqNoMeta := &relaycore.CanonicalRequest{
		Messages: []relaycore.Message{{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}}},
	}
	wireReq2, err := BuildRequest(reqNoMeta, "model", sess)
	require.NoError(t, err)
	assert.NotEmpty(t, wireReq2.Metadata.ConversationID)
}

func TestBuildRequest_SupportedToolsDerivedFromCanonicalTools(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		Tools: []relaycore.Tool{{Name: "Bash"}, {Name: "Read"}},
		Messages: []relaycore.Message{
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}},
		},
	}
	sess := NewSession("model", "/tmp", "/root", "/bin/bash")
	wireReq, err := BuildRequest(req, "model", sess)
	require.NoError(t, err)
	assert.Contains(t, wireReq.Settings.SupportedTools, "RUN_SHELL_COMMAND")
	assert.Contains(t, wireReq.Settings.SupportedTools, "READ_FILES")
}
