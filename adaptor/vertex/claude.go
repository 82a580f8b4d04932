package vertex

import (
	"encoding/json"
	"fmt"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/relaycore"
)

const vertexAnthropicVersion = "vertex-2023-10-16"

// claudeRequestURL builds the Vertex-on-Anthropic rawPredict/streamRawPredict
// endpoint. region=global is served off the us-central1 regional host per the
// upstream-interface design.
func claudeRequestURL(c *credential.Credential, vertexModel string, stream bool) string {
	region := c.Region
	if region == "" {
		region = "us-central1"
	}
	host := region + "-aiplatform.googleapis.com"
	if region == "global" {
		host = "us-central1-aiplatform.googleapis.com"
	}
	method := "rawPredict"
	if stream {
		method = "streamRawPredict"
	}
	return fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/publishers/anthropic/models/%s:%s",
		host, c.ProjectId, region, vertexModel, method)
}

// convertClaudeRequest copies the canonical request into the Vertex-on-Anthropic
// envelope, stripping Vertex-incompatible schema fields from tool definitions.
func convertClaudeRequest(req *relaycore.CanonicalRequest, vertexModel string) ([]byte, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = relaycore.DefaultMaxTokens
	}

	body := map[string]any{
		"anthropic_version": vertexAnthropicVersion,
		"messages":          req.Messages,
		"max_tokens":        maxTokens,
		"stream":            req.Stream,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.TopK != nil {
		body["top_k"] = *req.TopK
	}
	if len(req.StopSequences) > 0 {
		body["stop_sequences"] = req.StopSequences
	}
	if len(req.Tools) > 0 {
		body["tools"] = cleanTools(req.Tools)
	}
	if req.ToolChoice != nil {
		body["tool_choice"] = req.ToolChoice
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	return json.Marshal(body)
}

func cleanTools(tools []relaycore.Tool) []map[string]any {
	out := make([]map[string]any, len(tools))
	for i, t := range tools {
		out[i] = map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": CleanJSONSchemaForVertex(t.InputSchema),
		}
	}
	return out
}

// vertexEventWrapperTypes are SSE event names emitted by Vertex's transport
// layer around the actual Anthropic event stream; they carry no client-facing
// content and are skipped during relay.
var vertexEventWrapperTypes = map[string]bool{
	"vertex_event": true,
	"ping":         true,
}

func isVertexWrapperEvent(eventName string) bool {
	return vertexEventWrapperTypes[eventName]
}

// countTokensURL builds the countTokens probe endpoint for vertexModel.
func countTokensURL(c *credential.Credential, vertexModel string) string {
	region := c.Region
	if region == "" {
		region = "us-central1"
	}
	host := region + "-aiplatform.googleapis.com"
	if region == "global" {
		host = "us-central1-aiplatform.googleapis.com"
	}
	return fmt.Sprintf("https://%s/v1/projects/%s/locations/%s/publishers/anthropic/models/%s:countTokens",
		host, c.ProjectId, region, vertexModel)
}
