package vertex

import (
	"encoding/json"
	"fmt"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/relaycore"
)

// geminiRequestURL builds the Vertex Gemini generateContent/streamGenerateContent endpoint.
func geminiRequestURL(c *credential.Credential, vertexModel string, stream bool) string {
	region := c.Region
	if region == "" {
		region = "us-central1"
	}
	host := region + "-aiplatform.googleapis.com"
	if region == "global" {
		host = "us-central1-aiplatform.googleapis.com"
	}
	method := "generateContent"
	if stream {
		method = "streamGenerateContent"
	}
	return fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		host, c.ProjectId, region, vertexModel, method)
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

// convertGeminiRequest converts the canonical request into Gemini's
// {contents, systemInstruction, generationConfig} envelope. Only text
// content blocks are translated; Gemini tool/image support is not modeled
// by this adaptor.
func convertGeminiRequest(req *relaycore.CanonicalRequest) ([]byte, error) {
	gr := geminiRequest{GenerationConfig: map[string]any{}}

	if req.System != "" {
		gr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}

	for _, m := range req.Messages {
		role := "user"
		if m.Role == relaycore.RoleAssistant {
			role = "model"
		}
		var parts []geminiPart
		for _, block := range m.Content {
			if block.Type == relaycore.BlockText {
				parts = append(parts, geminiPart{Text: block.Text})
			}
		}
		if len(parts) == 0 {
			continue
		}
		gr.Contents = append(gr.Contents, geminiContent{Role: role, Parts: parts})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = relaycore.DefaultMaxTokens
	}
	gr.GenerationConfig["maxOutputTokens"] = maxTokens
	if req.Temperature != nil {
		gr.GenerationConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		gr.GenerationConfig["topP"] = *req.TopP
	}
	if req.TopK != nil {
		gr.GenerationConfig["topK"] = *req.TopK
	}
	if len(req.StopSequences) > 0 {
		gr.GenerationConfig["stopSequences"] = req.StopSequences
	}

	return json.Marshal(gr)
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type geminiCandidate struct {
	Content struct {
		Parts []geminiPart `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate   `json:"candidates"`
	UsageMetadata geminiUsageMetadata `json:"usageMetadata"`
}

// convertGeminiResponse converts a non-streaming Gemini response into the
// canonical single-text-block Claude message shape.
func convertGeminiResponse(body []byte) (map[string]any, error) {
	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, err
	}
	var text string
	if len(gr.Candidates) > 0 {
		for _, p := range gr.Candidates[0].Content.Parts {
			text += p.Text
		}
	}
	return map[string]any{
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason": geminiStopReason(firstFinishReason(gr.Candidates)),
		"usage": map[string]any{
			"input_tokens":  gr.UsageMetadata.PromptTokenCount,
			"output_tokens": gr.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func firstFinishReason(candidates []geminiCandidate) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0].FinishReason
}

func geminiStopReason(finishReason string) string {
	switch finishReason {
	case "MAX_TOKENS":
		return "max_tokens"
	case "SAFETY", "RECITATION":
		return "end_turn"
	default:
		return "end_turn"
	}
}
