package warp

import (
	"encoding/json"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/relaygate/core/adaptor/warp/wire"
	"github.com/relaygate/core/relaycore"
)

const defaultProjectRuleFile = ".claude/rules.md"

type requestMetadata struct {
	SessionID string `json:"session_id"`
}

func readSessionID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var m requestMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	return m.SessionID
}

// BuildRequest translates a canonical request into a Warp wire.Request,
// threading in sess for tool_use_id bookkeeping across turns.
func BuildRequest(req *relaycore.CanonicalRequest, warpModel string, sess *Session) (*wire.Request, error) {
	taskID := uuid.NewString()

	priorMessages := req.Messages
	var lastUser *relaycore.Message
	if n := len(priorMessages); n > 0 && priorMessages[n-1].Role == relaycore.RoleUser {
		lastUser = &priorMessages[n-1]
		priorMessages = priorMessages[:n-1]
	}

	taskMessages, _, err := convertPriorMessages(priorMessages, sess)
	if err != nil {
		return nil, err
	}

	var inputs []wire.UserInputEntry
	if lastUser != nil {
		for _, block := range lastUser.Content {
			switch block.Type {
			case relaycore.BlockText:
				inputs = append(inputs, wire.UserInputEntry{UserQuery: block.Text})
			case relaycore.BlockToolResult:
				inputs = append(inputs, wire.UserInputEntry{ToolCallResult: &wire.ToolCallResult{
					CallID:       block.ToolResultID,
					SuccessText:  block.Content,
					ErrorMessage: block.Content,
					IsError:      block.IsError,
				}})
			}
		}
	}

	ctx := buildInputContext(req.System)

	settings := wire.Settings{
		Model:                     warpModel,
		RulesEnabled:              true,
		SupportsParallelToolCalls: true,
		PlanningEnabled:           false,
	}
	for _, t := range req.Tools {
		settings.SupportedTools = append(settings.SupportedTools, ResolveWarpToolType(t.Name))
	}

	conversationID := readSessionID(req.Metadata)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	return &wire.Request{
		TaskContext: wire.TaskContext{
			Tasks: []wire.Task{{
				ID:       taskID,
				Status:   "in_progress",
				Messages: taskMessages,
			}},
			ActiveTaskID: taskID,
		},
		Input: wire.Input{
			Context:    ctx,
			UserInputs: wire.UserInputs{Inputs: inputs},
		},
		Settings: settings,
		Metadata: wire.Metadata{ConversationID: conversationID},
	}, nil
}

func buildInputContext(systemPrompt string) wire.InputContext {
	pwd := "/tmp"
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	now := time.Now()

	ctx := wire.InputContext{
		Pwd:      pwd,
		Home:     home,
		Platform: runtime.GOOS,
		ShellName: shell,
		Seconds:  now.Unix(),
		Nanos:    int64(now.Nanosecond()),
	}
	if systemPrompt != "" {
		ctx.ProjectRules = []wire.ProjectRule{{
			RootPath: pwd,
			ActiveRuleFiles: []wire.ActiveRuleFile{{
				FilePath: defaultProjectRuleFile,
				Content:  systemPrompt,
			}},
		}}
	}
	return ctx
}

// convertPriorMessages translates every message but the trailing user turn
// into wire.TaskMessage entries, recording each tool_use_id -> tool name
// pairing into the session so later tool_result blocks can be validated.
func convertPriorMessages(messages []relaycore.Message, sess *Session) ([]wire.TaskMessage, map[string]string, error) {
	var out []wire.TaskMessage
	toolNames := map[string]string{}

	for _, m := range messages {
		for _, block := range m.Content {
			id := uuid.NewString()
			switch {
			case m.Role == relaycore.RoleUser && block.Type == relaycore.BlockText:
				out = append(out, wire.TaskMessage{ID: id, UserQuery: block.Text})
			case m.Role == relaycore.RoleUser && block.Type == relaycore.BlockToolResult:
				out = append(out, wire.TaskMessage{ID: id, ToolCallResult: &wire.ToolCallResult{
					CallID:       block.ToolResultID,
					SuccessText:  block.Content,
					ErrorMessage: block.Content,
					IsError:      block.IsError,
				}})
			case m.Role == relaycore.RoleAssistant && block.Type == relaycore.BlockText:
				out = append(out, wire.TaskMessage{ID: id, AgentText: block.Text})
			case m.Role == relaycore.RoleAssistant && block.Type == relaycore.BlockToolUse:
				warpType := ResolveWarpToolType(block.Name)
				toolNames[block.ToolUseID] = block.Name
				sess.RecordToolCall(block.ToolUseID, block.Name)
				tc := toolCallFromBlock(block, warpType)
				out = append(out, wire.TaskMessage{ID: id, ToolCall: tc})
			}
		}
	}
	return out, toolNames, nil
}

func toolCallFromBlock(block relaycore.ContentBlock, warpType string) *wire.ToolCall {
	tc := &wire.ToolCall{ID: block.ToolUseID, WarpType: warpType}

	var input map[string]any
	_ = json.Unmarshal(block.Input, &input)

	switch warpType {
	case "RUN_SHELL_COMMAND":
		command, _ := input["command"].(string)
		tc.RunShellCommand = &wire.RunShellCommand{
			Command:    command,
			IsReadOnly: IsReadOnlyCommand(command),
			IsRisky:    IsRiskyCommand(command),
		}
	case "READ_FILES":
		if path, ok := input["file_path"].(string); ok {
			tc.ReadFiles = []string{path}
		}
	case "APPLY_FILE_DIFFS":
		if block.Name == "Write" {
			path, _ := input["file_path"].(string)
			content, _ := input["content"].(string)
			tc.NewFiles = []wire.NewFile{{FilePath: path, Content: content}}
		} else {
			path, _ := input["file_path"].(string)
			search, _ := input["old_string"].(string)
			replace, _ := input["new_string"].(string)
			tc.Diffs = []wire.Diff{{FilePath: path, Search: search, Replace: replace}}
		}
	case "GREP":
		if q, ok := input["pattern"].(string); ok {
			tc.GrepQueries = []string{q}
		}
		if p, ok := input["path"].(string); ok {
			tc.GrepPath = p
		}
	case "FILE_GLOB_V2":
		if p, ok := input["pattern"].(string); ok {
			tc.GlobPatterns = []string{p}
		}
	case "CALL_MCP_TOOL":
		tc.McpName = block.Name
		tc.McpArgsJSON = string(block.Input)
	}
	return tc
}
