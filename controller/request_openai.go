package controller

import (
	"encoding/json"
	"strings"

	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/relaycore"
)

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function openAIFunctionCall  `json:"function"`
}

type openAIContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

// openAIMessage accepts Content as either a bare string or an array of typed
// parts, matching the two shapes real clients send.
type openAIMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openAITool struct {
	Type     string          `json:"type"`
	Function openAIFunction  `json:"function"`
}

// openAIStop accepts either a bare string or an array of strings for "stop".
type openAIStop []string

func (s *openAIStop) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = []string{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type openAIToolChoice struct {
	raw json.RawMessage
}

func (t *openAIToolChoice) UnmarshalJSON(data []byte) error {
	t.raw = append([]byte(nil), data...)
	return nil
}

type openAIChatRequest struct {
	Model       string            `json:"model" binding:"required"`
	Messages    []openAIMessage   `json:"messages" binding:"required"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Stop        openAIStop        `json:"stop,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
	Tools       []openAITool      `json:"tools,omitempty"`
	ToolChoice  *openAIToolChoice `json:"tool_choice,omitempty"`
}

// ParseOpenAIChatRequest translates an OpenAI Chat Completions body into the
// canonical request model: system-role messages are hoisted into System,
// tool_calls on an assistant message become tool_use blocks, and a tool-role
// message becomes a tool_result block keyed by tool_call_id.
func ParseOpenAIChatRequest(body []byte) (*relaycore.CanonicalRequest, error) {
	var req openAIChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errs.ClientError("decode openai chat request: " + err.Error())
	}
	if err := relaycore.Validate(&req); err != nil {
		return nil, errs.ClientError("validate openai chat request: " + err.Error())
	}

	canonical := &relaycore.CanonicalRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
	}
	if len(req.Stop) > 0 {
		canonical.StopSequences = []string(req.Stop)
	}

	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			text, err := decodeOpenAIContentText(m.Content)
			if err != nil {
				return nil, err
			}
			if text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}

		msg, err := convertOpenAIMessage(m)
		if err != nil {
			return nil, err
		}
		canonical.Messages = append(canonical.Messages, msg)
	}
	canonical.System = strings.Join(systemParts, "\n\n")

	for _, t := range req.Tools {
		canonical.Tools = append(canonical.Tools, relaycore.Tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: t.Function.Parameters,
		})
	}
	if req.ToolChoice != nil {
		canonical.ToolChoice = convertOpenAIToolChoice(req.ToolChoice.raw)
	}

	return canonical, nil
}

func convertOpenAIMessage(m openAIMessage) (relaycore.Message, error) {
	role := relaycore.RoleUser
	if m.Role == "assistant" {
		role = relaycore.RoleAssistant
	}

	var blocks []relaycore.ContentBlock

	if m.Role == "tool" {
		text, err := decodeOpenAIContentText(m.Content)
		if err != nil {
			return relaycore.Message{}, err
		}
		blocks = append(blocks, relaycore.ContentBlock{
			Type:         relaycore.BlockToolResult,
			ToolResultID: m.ToolCallID,
			Content:      text,
		})
		return relaycore.Message{Role: relaycore.RoleUser, Content: blocks}, nil
	}

	if text, parts, err := decodeOpenAIContentParts(m.Content); err != nil {
		return relaycore.Message{}, err
	} else if text != "" {
		blocks = append(blocks, relaycore.ContentBlock{Type: relaycore.BlockText, Text: text})
	} else {
		blocks = append(blocks, parts...)
	}

	for _, tc := range m.ToolCalls {
		blocks = append(blocks, relaycore.ContentBlock{
			Type:      relaycore.BlockToolUse,
			ToolUseID: tc.ID,
			Name:      tc.Function.Name,
			Input:     json.RawMessage(tc.Function.Arguments),
		})
	}

	return relaycore.Message{Role: role, Content: blocks}, nil
}

func decodeOpenAIContentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	text, _, err := decodeOpenAIContentParts(raw)
	return text, err
}

// decodeOpenAIContentParts returns (text, nil, nil) when raw is a bare
// string, or ("", blocks, nil) when it is an array of typed parts.
func decodeOpenAIContentParts(raw json.RawMessage) (string, []relaycore.ContentBlock, error) {
	if len(raw) == 0 {
		return "", nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil, nil
	}

	var parts []openAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil, errs.ClientError("decode message content: " + err.Error())
	}
	var blocks []relaycore.ContentBlock
	for _, p := range parts {
		switch p.Type {
		case "text":
			blocks = append(blocks, relaycore.ContentBlock{Type: relaycore.BlockText, Text: p.Text})
		case "image_url":
			if p.ImageURL != nil {
				blocks = append(blocks, relaycore.ContentBlock{Type: relaycore.BlockImage, ImageSource: p.ImageURL.URL})
			}
		}
	}
	return "", blocks, nil
}

func convertOpenAIToolChoice(raw json.RawMessage) *relaycore.ToolChoice {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto", "required":
			return &relaycore.ToolChoice{Type: "auto"}
		default:
			return nil
		}
	}

	var named struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &named); err != nil || named.Function.Name == "" {
		return nil
	}
	return &relaycore.ToolChoice{Type: "tool", Name: named.Function.Name}
}
