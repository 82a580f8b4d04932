package vertex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/relaycore"
)

func TestCleanJSONSchemaForVertex_StripsIncompatibleFields(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","$comment":"drop me","properties":{"x":{"type":"string","input_examples":["a"]}}}`)
	cleaned := CleanJSONSchemaForVertex(schema)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(cleaned, &decoded))
	_, hasComment := decoded["$comment"]
	assert.False(t, hasComment)

	props := decoded["properties"].(map[string]any)
	x := props["x"].(map[string]any)
	_, hasExamples := x["input_examples"]
	assert.False(t, hasExamples)
	assert.Equal(t, "string", x["type"])
}

func TestClaudeRequestURL_GlobalRegionRedirectsToUsCentral1(t *testing.T) {
	c := &credential.Credential{ProjectId: "proj", Region: "global"}
	url := claudeRequestURL(c, "claude-sonnet-4-5@20250514", false)
	assert.Contains(t, url, "us-central1-aiplatform.googleapis.com")
	assert.Contains(t, url, "/locations/global/")
	assert.Contains(t, url, ":rawPredict")
}

func TestClaudeRequestURL_StreamUsesStreamRawPredict(t *testing.T) {
	c := &credential.Credential{ProjectId: "proj", Region: "us-east5"}
	url := claudeRequestURL(c, "claude-sonnet-4-5@20250514", true)
	assert.Contains(t, url, "us-east5-aiplatform.googleapis.com")
	assert.Contains(t, url, ":streamRawPredict")
}

func TestConvertClaudeRequest_SetsVertexAnthropicVersion(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		Model:    "claude-sonnet-4.5",
		Messages: []relaycore.Message{{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}}},
	}
	body, err := convertClaudeRequest(req, "claude-sonnet-4-5@20250514")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "vertex-2023-10-16", decoded["anthropic_version"])
	assert.NotContains(t, decoded, "model")
}

func TestConvertClaudeRequest_CleansToolSchemas(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		Messages: []relaycore.Message{{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}}},
		Tools: []relaycore.Tool{{
			Name:        "lookup",
			InputSchema: json.RawMessage(`{"type":"object","$comment":"x"}`),
		}},
	}
	body, err := convertClaudeRequest(req, "claude-sonnet-4-5@20250514")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	tools := decoded["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	schema := tool["input_schema"].(map[string]any)
	_, hasComment := schema["$comment"]
	assert.False(t, hasComment)
}

func TestIsVertexWrapperEvent(t *testing.T) {
	assert.True(t, isVertexWrapperEvent("vertex_event"))
	assert.True(t, isVertexWrapperEvent("ping"))
	assert.False(t, isVertexWrapperEvent("content_block_delta"))
	assert.False(t, isVertexWrapperEvent(""))
}

func TestCountTokensURL_UsesCountTokensMethod(t *testing.T) {
	c := &credential.Credential{ProjectId: "proj", Region: "us-central1"}
	url := countTokensURL(c, "claude-sonnet-4-5@20250514")
	assert.Contains(t, url, ":countTokens")
	assert.Contains(t, url, "publishers/anthropic")
}

func TestGeminiRequestURL_DefaultsRegionWhenEmpty(t *testing.T) {
	c := &credential.Credential{ProjectId: "proj"}
	url := geminiRequestURL(c, "gemini-2.5-pro", false)
	assert.Contains(t, url, "us-central1-aiplatform.googleapis.com")
	assert.Contains(t, url, "publishers/google")
	assert.Contains(t, url, ":generateContent")
}

func TestConvertGeminiRequest_MapsSystemAndTextMessages(t *testing.T) {
	req := &relaycore.CanonicalRequest{
		System: "be terse",
		Messages: []relaycore.Message{
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}},
			{Role: relaycore.RoleAssistant, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hello"}}},
		},
	}
	body, err := convertGeminiRequest(req)
	require.NoError(t, err)

	var decoded geminiRequest
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.NotNil(t, decoded.SystemInstruction)
	assert.Equal(t, "be terse", decoded.SystemInstruction.Parts[0].Text)
	require.Len(t, decoded.Contents, 2)
	assert.Equal(t, "user", decoded.Contents[0].Role)
	assert.Equal(t, "model", decoded.Contents[1].Role)
}

func TestConvertGeminiResponse_ConcatenatesPartsAndMapsUsage(t *testing.T) {
	raw := []byte(`{
		"candidates": [{"content": {"parts": [{"text": "hel"}, {"text": "lo"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 2}
	}`)
	out, err := convertGeminiResponse(raw)
	require.NoError(t, err)

	content := out["content"].([]map[string]any)
	require.Len(t, content, 1)
	assert.Equal(t, "hello", content[0]["text"])

	usage := out["usage"].(map[string]any)
	assert.Equal(t, 5, usage["input_tokens"])
	assert.Equal(t, 2, usage["output_tokens"])
}

func TestGeminiStopReason_MapsMaxTokens(t *testing.T) {
	assert.Equal(t, "max_tokens", geminiStopReason("MAX_TOKENS"))
	assert.Equal(t, "end_turn", geminiStopReason("STOP"))
}

func TestIsGeminiModel(t *testing.T) {
	assert.True(t, isGeminiModel("gemini-2.5-pro"))
	assert.False(t, isGeminiModel("claude-sonnet-4-5@20250514"))
}

func TestAdaptor_RequestURL_DispatchesOnResolvedModel(t *testing.T) {
	a := &Adaptor{}
	c := &credential.Credential{ProjectId: "proj", Region: "us-central1"}

	claudeURL, err := a.RequestURL(c, "claude-sonnet-4-5@20250514", false)
	require.NoError(t, err)
	assert.Contains(t, claudeURL, "publishers/anthropic")

	geminiURL, err := a.RequestURL(c, "gemini-2.5-pro", false)
	require.NoError(t, err)
	assert.Contains(t, geminiURL, "publishers/google")
}

func TestClassifyVertexError_RateLimitIsTransient(t *testing.T) {
	err := classifyVertexError(429, []byte(`{"error":"quota exceeded"}`))
	assert.Error(t, err)
}

func TestClassifyVertexError_ForbiddenIsAuthError(t *testing.T) {
	err := classifyVertexError(403, []byte(`{"error":"permission denied"}`))
	assert.Error(t, err)
}
