package controller

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/relaycore"
)

type geminiPart struct {
	Text         string          `json:"text,omitempty"`
	FunctionCall *struct {
		Name string          `json:"name"`
		Args json.RawMessage `json:"args,omitempty"`
	} `json:"functionCall,omitempty"`
	FunctionResponse *struct {
		Name     string          `json:"name"`
		Response json.RawMessage `json:"response,omitempty"`
	} `json:"functionResponse,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent `json:"contents" binding:"required"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiTool    `json:"tools,omitempty"`
}

// ParseGeminiGenerateRequest translates a Gemini generateContent/
// streamGenerateContent body into the canonical request model. model comes
// from the URL path segment, since Gemini's wire body carries none. Gemini
// has no stable call-id concept for function calls/responses the way
// Anthropic and OpenAI do, so a synthetic id is generated per functionCall
// and functionResponse blocks are correlated by function name instead of id.
func ParseGeminiGenerateRequest(body []byte, model string) (*relaycore.CanonicalRequest, error) {
	var req geminiGenerateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, errs.ClientError("decode gemini generate request: " + err.Error())
	}
	if err := relaycore.Validate(&req); err != nil {
		return nil, errs.ClientError("validate gemini generate request: " + err.Error())
	}

	canonical := &relaycore.CanonicalRequest{Model: model}

	if req.SystemInstruction != nil {
		for _, p := range req.SystemInstruction.Parts {
			canonical.System += p.Text
		}
	}

	if cfg := req.GenerationConfig; cfg != nil {
		canonical.Temperature = cfg.Temperature
		canonical.TopP = cfg.TopP
		canonical.TopK = cfg.TopK
		canonical.MaxTokens = cfg.MaxOutputTokens
		canonical.StopSequences = cfg.StopSequences
	}

	for _, content := range req.Contents {
		role := relaycore.RoleUser
		if content.Role == "model" {
			role = relaycore.RoleAssistant
		}
		var blocks []relaycore.ContentBlock
		for _, part := range content.Parts {
			switch {
			case part.FunctionCall != nil:
				input := part.FunctionCall.Args
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, relaycore.ContentBlock{
					Type: relaycore.BlockToolUse, ToolUseID: uuid.NewString(),
					Name: part.FunctionCall.Name, Input: input,
				})
			case part.FunctionResponse != nil:
				blocks = append(blocks, relaycore.ContentBlock{
					Type: relaycore.BlockToolResult, ToolResultID: part.FunctionResponse.Name,
					Content: string(part.FunctionResponse.Response),
				})
			default:
				if part.Text != "" {
					blocks = append(blocks, relaycore.ContentBlock{Type: relaycore.BlockText, Text: part.Text})
				}
			}
		}
		canonical.Messages = append(canonical.Messages, relaycore.Message{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		for _, fn := range t.FunctionDeclarations {
			canonical.Tools = append(canonical.Tools, relaycore.Tool{
				Name: fn.Name, Description: fn.Description, InputSchema: fn.Parameters,
			})
		}
	}

	return canonical, nil
}
