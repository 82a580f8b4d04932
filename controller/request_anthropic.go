package controller

import (
	"encoding/json"

	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/relaycore"
)

type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Source    *struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	} `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type anthropicToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model         string                 `json:"model" binding:"required"`
	Messages      []anthropicMessage     `json:"messages" binding:"required"`
	System        json.RawMessage        `json:"system,omitempty"`
	MaxTokens     int                    `json:"max_tokens,omitempty"`
	Temperature   *float64               `json:"temperature,omitempty"`
	TopP          *float64               `json:"top_p,omitempty"`
	TopK          *int                   `json:"top_k,omitempty"`
	StopSequences []string               `json:"stop_sequences,omitempty"`
	Stream        bool                   `json:"stream,omitempty"`
	Tools         []anthropicToolDef     `json:"tools,omitempty"`
	ToolChoice    *relaycore.ToolChoice  `json:"tool_choice,omitempty"`
	Metadata      json.RawMessage        `json:"metadata,omitempty"`
}

// ParseAnthropicMessagesRequest translates a native Anthropic Messages body
// into the canonical request model. The canonical ContentBlock shape is a
// flattened version of Anthropic's wire shape (a single Content string per
// tool_result rather than a nested block array, a flat ImageSource/MediaType
// pair rather than a nested source object), so this is a conversion, not a
// direct unmarshal.
func ParseAnthropicMessagesRequest(body []byte) (*relaycore.CanonicalRequest, error) {
	var req anthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errs.ClientError("decode anthropic messages request: " + err.Error())
	}
	if err := relaycore.Validate(&req); err != nil {
		return nil, errs.ClientError("validate anthropic messages request: " + err.Error())
	}

	canonical := &relaycore.CanonicalRequest{
		Model:         req.Model,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
		Stream:        req.Stream,
		ToolChoice:    req.ToolChoice,
		Metadata:      req.Metadata,
	}

	system, err := decodeAnthropicText(req.System)
	if err != nil {
		return nil, err
	}
	canonical.System = system

	for _, m := range req.Messages {
		blocks, err := decodeAnthropicBlocks(m.Content)
		if err != nil {
			return nil, err
		}
		role := relaycore.RoleUser
		if m.Role == "assistant" {
			role = relaycore.RoleAssistant
		}
		canonical.Messages = append(canonical.Messages, relaycore.Message{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		canonical.Tools = append(canonical.Tools, relaycore.Tool{
			Name: t.Name, Description: t.Description, InputSchema: t.InputSchema,
		})
	}

	return canonical, nil
}

// decodeAnthropicText handles Anthropic's "system" field, which is either a
// bare string or an array of text content blocks.
func decodeAnthropicText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	blocks, err := decodeAnthropicBlocks(raw)
	if err != nil {
		return "", err
	}
	var text string
	for _, b := range blocks {
		text += b.Text
	}
	return text, nil
}

// decodeAnthropicBlocks handles a "content" field that is either a bare
// string (one text block) or an array of typed content blocks.
func decodeAnthropicBlocks(raw json.RawMessage) ([]relaycore.ContentBlock, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		return []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: s}}, nil
	}

	var wire []anthropicContentBlock
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errs.ClientError("decode content blocks: " + err.Error())
	}

	var blocks []relaycore.ContentBlock
	for _, b := range wire {
		switch b.Type {
		case "text":
			blocks = append(blocks, relaycore.ContentBlock{Type: relaycore.BlockText, Text: b.Text})
		case "tool_use":
			blocks = append(blocks, relaycore.ContentBlock{
				Type: relaycore.BlockToolUse, ToolUseID: b.ID, Name: b.Name, Input: b.Input,
			})
		case "tool_result":
			text, err := decodeAnthropicToolResultContent(b.Content)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, relaycore.ContentBlock{
				Type: relaycore.BlockToolResult, ToolResultID: b.ToolUseID, Content: text, IsError: b.IsError,
			})
		case "image":
			if b.Source != nil {
				blocks = append(blocks, relaycore.ContentBlock{
					Type: relaycore.BlockImage, ImageSource: b.Source.Data, ImageMediaType: b.Source.MediaType,
				})
			}
		}
	}
	return blocks, nil
}

// decodeAnthropicToolResultContent flattens tool_result content, which may be
// a bare string or an array of text blocks, into a single string.
func decodeAnthropicToolResultContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	blocks, err := decodeAnthropicBlocks(raw)
	if err != nil {
		return "", err
	}
	var text string
	for _, b := range blocks {
		text += b.Text
	}
	return text, nil
}
