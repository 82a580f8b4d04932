package warp

import (
	"encoding/json"

	"github.com/relaygate/core/adaptor/warp/wire"
)

// EventType tags one normalized Warp stream event consumed by the state
// machine. Only the schema-based decode path (wire.DecodeResponseEvent) is
// used; there is no heuristic string-scan fallback for malformed events.
type EventType string

const (
	EventStreamInit     EventType = "stream_init"
	EventTextDelta      EventType = "text_delta"
	EventReasoningDelta EventType = "reasoning_delta"
	EventToolUse        EventType = "tool_use"
	EventTaskCreated    EventType = "task_created"
	EventTaskStatus     EventType = "task_status"
	EventStreamFinished EventType = "stream_finished"
)

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     int64
	CacheCreationInputTokens int64
}

type Event struct {
	Type EventType

	Text string

	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage

	ConversationID string
	RequestID      string

	TaskID string
	Status string

	StopReason string
	Usage      Usage
}

var warpStopReasons = map[string]string{
	"done":                     "end_turn",
	"quota_limit":              "quota_limit",
	"max_token_limit":          "max_tokens",
	"context_window_exceeded":  "context_window_exceeded",
	"llm_unavailable":          "llm_unavailable",
	"internal_error":           "internal_error",
}

func mapStopReason(reason string) string {
	if mapped, ok := warpStopReasons[reason]; ok {
		return mapped
	}
	return reason
}

// DecodeFrame decodes one base64-decoded Warp SSE data frame and normalizes
// it into zero or more Events.
func DecodeFrame(b []byte, sess *Session) ([]Event, error) {
	ev, err := wire.DecodeResponseEvent(b)
	if err != nil {
		return nil, err
	}

	var out []Event

	if ev.Init != nil {
		out = append(out, Event{
			Type:           EventStreamInit,
			ConversationID: ev.Init.ConversationID,
			RequestID:      ev.Init.RequestID,
		})
	}

	for _, action := range ev.ClientActions {
		if action.HasAppend {
			if action.AppendReasoning {
				out = append(out, Event{Type: EventReasoningDelta, Text: action.AppendText})
			} else if action.AppendText != "" {
				out = append(out, Event{Type: EventTextDelta, Text: action.AppendText})
			}
		}
		for _, m := range action.AddedMessages {
			out = append(out, messageToEvents(m, sess)...)
		}
		if action.UpdatedMessage != nil {
			if action.UpdatedMessage.AgentText != "" {
				out = append(out, Event{Type: EventTextDelta, Text: action.UpdatedMessage.AgentText})
			}
		}
		if action.CreatedTaskID != "" {
			out = append(out, Event{Type: EventTaskCreated, TaskID: action.CreatedTaskID})
		}
		if action.StatusTaskID != "" || action.Status != "" {
			out = append(out, Event{Type: EventTaskStatus, TaskID: action.StatusTaskID, Status: action.Status})
		}
	}

	if ev.Finished != nil {
		var usage Usage
		for _, u := range ev.Finished.TokenUsage {
			usage.InputTokens += u.InputTokens
			usage.OutputTokens += u.OutputTokens
			usage.CacheReadInputTokens += u.CacheReadInputTokens
			usage.CacheCreationInputTokens += u.CacheCreationInputTokens
		}
		out = append(out, Event{
			Type:       EventStreamFinished,
			StopReason: mapStopReason(ev.Finished.Reason),
			Usage:      usage,
		})
	}

	return out, nil
}

func messageToEvents(m wire.DecodedTaskMessage, sess *Session) []Event {
	if m.ToolCall != nil {
		name, input := decodeToolCall(m.ToolCall)
		sess.RecordToolCall(m.ToolCall.ID, name)
		return []Event{{Type: EventToolUse, ToolUseID: m.ToolCall.ID, ToolName: name, ToolInput: input}}
	}
	if m.AgentReasoning != "" {
		return []Event{{Type: EventReasoningDelta, Text: m.AgentReasoning}}
	}
	if m.AgentText != "" {
		return []Event{{Type: EventTextDelta, Text: m.AgentText}}
	}
	return nil
}

// decodeToolCall reverses toolCallFromBlock, recovering the canonical tool
// name and {id,name,input} shape a client originally sent.
func decodeToolCall(dt *wire.DecodedToolCall) (string, json.RawMessage) {
	switch dt.WarpType {
	case "RUN_SHELL_COMMAND":
		command, _, _, _ := dt.RunShellCommand()
		input, _ := json.Marshal(map[string]any{"command": command})
		return "Bash", input
	case "READ_FILES":
		files := dt.ReadFiles()
		path := ""
		if len(files) > 0 {
			path = files[0]
		}
		input, _ := json.Marshal(map[string]any{"file_path": path})
		return "Read", input
	case "APPLY_FILE_DIFFS":
		newFiles, diffs := dt.ApplyFileDiffs()
		if len(newFiles) > 0 {
			input, _ := json.Marshal(map[string]any{"file_path": newFiles[0].FilePath, "content": newFiles[0].Content})
			return CanonicalToolName(dt.WarpType, "", true), input
		}
		if len(diffs) > 0 {
			input, _ := json.Marshal(map[string]any{
				"file_path":  diffs[0].FilePath,
				"old_string": diffs[0].Search,
				"new_string": diffs[0].Replace,
			})
			return CanonicalToolName(dt.WarpType, "", false), input
		}
		return "Edit", json.RawMessage(`{}`)
	case "GREP":
		queries, path := dt.Grep()
		pattern := ""
		if len(queries) > 0 {
			pattern = queries[0]
		}
		input, _ := json.Marshal(map[string]any{"pattern": pattern, "path": path})
		return "Grep", input
	case "FILE_GLOB_V2":
		patterns := dt.FileGlob()
		pattern := ""
		if len(patterns) > 0 {
			pattern = patterns[0]
		}
		input, _ := json.Marshal(map[string]any{"pattern": pattern})
		return "Glob", input
	case "CALL_MCP_TOOL":
		name, argsJSON := dt.CallMcpTool()
		if argsJSON == "" {
			argsJSON = "{}"
		}
		return CanonicalToolName(dt.WarpType, name, false), json.RawMessage(argsJSON)
	default:
		return dt.WarpType, json.RawMessage(`{}`)
	}
}
