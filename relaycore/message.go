// Package relaycore defines the canonical request/message model every
// adaptor translates to and from, and the per-request context threaded
// through a relay.
package relaycore

import (
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"
)

// BlockType tags a ContentBlock's payload kind.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
)

// ContentBlock is the canonical tagged-union content element carried inside a
// Message, mirroring the Anthropic Messages content-block shape that the
// other two vendors are translated into and out of.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Text is set when Type == BlockText.
	Text string `json:"text,omitempty"`

	// ToolUseID, Name, Input are set when Type == BlockToolUse.
	ToolUseID string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`

	// ToolResultID, Content, IsError are set when Type == BlockToolResult.
	ToolResultID string `json:"tool_use_id,omitempty"`
	Content      string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`

	// ImageSource/ImageMediaType are set when Type == BlockImage (inline
	// base64 payload only; no remote image fetching in this gateway).
	ImageSource    string `json:"image_source,omitempty"`
	ImageMediaType string `json:"image_media_type,omitempty"`
}

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one canonical conversational turn.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Tool is the canonical tool definition, translated per-vendor by each
// adaptor (Anthropic passes it through; Vertex strips $comment/input_examples;
// Warp maps it onto its fixed tool-type table).
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// ToolChoice mirrors Anthropic's tool_choice union ({"type":"auto"|"any"|"tool","name":...}).
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// CanonicalRequest is the vendor-neutral request object every ingress
// endpoint parses its client-facing schema into before routing.
type CanonicalRequest struct {
	Model         string          `json:"model"`
	Messages      []Message       `json:"messages"`
	System        string          `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens,omitempty"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	TopK          *int            `json:"top_k,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Tools         []Tool          `json:"tools,omitempty"`
	ToolChoice    *ToolChoice     `json:"tool_choice,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// DefaultMaxTokens is applied when a request omits max_tokens, matching the
// Vertex envelope's documented default.
const DefaultMaxTokens = 8192

// RequestContext carries per-request bookkeeping through the selector,
// adaptor, and streaming engine.
type RequestContext struct {
	RequestID          string
	APIKeyHash         string
	IPAddress          net.IP
	UserAgent          string
	StartTime          time.Time
	TriedCredentialIDs []int
	Request            *CanonicalRequest

	// ResolvedModel is the vendor-specific upstream model id chosen by the
	// router for the current attempt; adaptors whose HandleResponse behavior
	// depends on which upstream model family was targeted (Vertex's
	// Claude-vs-Gemini dispatch) read it instead of Request.Model, which
	// stays the client-facing canonical name.
	ResolvedModel string

	// ClientFormat names the downstream wire shape the ingress endpoint
	// parsed this request from, so adaptors that build their own streaming
	// engine (Warp) render the response in the same shape.
	ClientFormat string
}

const (
	ClientFormatAnthropic = "anthropic"
	ClientFormatOpenAI    = "openai"
)

// NewRequestContext stamps a fresh request id and start time.
func NewRequestContext(req *CanonicalRequest) *RequestContext {
	return &RequestContext{
		RequestID: uuid.NewString(),
		StartTime: time.Now(),
		Request:   req,
	}
}
