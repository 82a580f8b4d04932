package relaycore

// ToolCallAccumulator tracks one in-flight tool_use block's accumulated
// input JSON while its content_block_delta events arrive.
type ToolCallAccumulator struct {
	ID          string
	Name        string
	InputBuffer string
}

// Usage mirrors the canonical usage object emitted in message_start/message_delta.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
}

// SSEState is the per-request streaming state machine's bookkeeping, per the
// data model's invariants: a block is open only between its start and stop
// events, blockIndex is monotonically non-decreasing, and exactly one
// message_start precedes / message_stop follows the block sequence.
type SSEState struct {
	MessageID        string
	Model            string
	InputTokens      int
	BlockIndex       int
	TextBlockStarted bool
	FullText         string
	ToolCalls        []ToolCallAccumulator
	Usage            Usage
	StopReason       string
	Finished         bool

	startEmitted bool
	deltaEmitted bool
	stopEmitted  bool
}

// NewSSEState seeds a fresh per-request streaming state.
func NewSSEState(messageID, model string, inputTokens int) *SSEState {
	return &SSEState{MessageID: messageID, Model: model, InputTokens: inputTokens}
}

// MarkStart records that message_start has been emitted; returns false if
// called a second time, which would violate the exactly-once invariant.
func (s *SSEState) MarkStart() bool {
	if s.startEmitted {
		return false
	}
	s.startEmitted = true
	return true
}

// MarkDelta records that message_delta has been emitted; returns false if
// called before message_start or a second time.
func (s *SSEState) MarkDelta() bool {
	if !s.startEmitted || s.deltaEmitted || s.stopEmitted {
		return false
	}
	s.deltaEmitted = true
	return true
}

// MarkStop records that message_stop has been emitted; returns false if
// called before message_delta or a second time.
func (s *SSEState) MarkStop() bool {
	if !s.deltaEmitted || s.stopEmitted {
		return false
	}
	s.stopEmitted = true
	s.Finished = true
	return true
}

// OpenTextBlock opens a new text content block at the current BlockIndex.
func (s *SSEState) OpenTextBlock() {
	s.TextBlockStarted = true
}

// CloseTextBlock closes the open text block and advances BlockIndex.
func (s *SSEState) CloseTextBlock() {
	s.TextBlockStarted = false
	s.BlockIndex++
}

// AppendToolCall records a fully materialised tool_use block and advances
// BlockIndex past the triple (start/delta/stop) the caller emits for it.
func (s *SSEState) AppendToolCall(id, name, input string) {
	s.ToolCalls = append(s.ToolCalls, ToolCallAccumulator{ID: id, Name: name, InputBuffer: input})
	s.BlockIndex++
}

// HasToolCalls reports whether any tool_use block was emitted, used to
// prioritise stop_reason=tool_use per the Warp state machine design.
func (s *SSEState) HasToolCalls() bool {
	return len(s.ToolCalls) > 0
}
