// Package streamengine implements the canonical SSE emitter every adaptor
// writes through: message_start / content_block_* / message_delta /
// message_stop, single-threaded per request and flushed after every event.
package streamengine

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/httperr"
	"github.com/relaygate/core/relaycore"
)

// Format selects the wire framing: canonical Anthropic-style named events, or
// the bare OpenAI-shaped "data: ...\n\n" frames terminated by "data: [DONE]".
type Format int

const (
	FormatCanonical Format = iota
	FormatOpenAI
)

// Emitter writes the canonical SSE event sequence for one request. It is not
// safe for concurrent use by design: the streaming engine is single-threaded
// per request, so a mutex here only guards against the cancellation path
// racing the normal emission path, not against intended concurrency.
type Emitter struct {
	w      http.ResponseWriter
	flush  http.Flusher
	state  *relaycore.SSEState
	format Format
	schema httperr.Schema

	mu sync.Mutex
}

// New builds an Emitter. w must support http.Flusher; this is required by
// every SSE handler registered with the gateway's HTTP server.
func New(w http.ResponseWriter, state *relaycore.SSEState, format Format, schema httperr.Schema) *Emitter {
	flusher, _ := w.(http.Flusher)
	return &Emitter{w: w, flush: flusher, state: state, format: format, schema: schema}
}

func (e *Emitter) writeFrame(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.ProtocolError("marshal sse frame", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var werr error
	if e.format == FormatCanonical {
		_, werr = e.w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
	} else {
		_, werr = e.w.Write([]byte("data: " + string(data) + "\n\n"))
	}
	if werr != nil {
		return errs.Wrap(errs.KindCancelled, werr, "write sse frame")
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return nil
}

// MessageStart emits the request's sole message_start event.
func (e *Emitter) MessageStart() error {
	if !e.state.MarkStart() {
		return errs.ProtocolError("message_start emitted more than once", nil)
	}
	return e.writeFrame("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":    e.state.MessageID,
			"type":  "message",
			"role":  "assistant",
			"model": e.state.Model,
			"usage": map[string]any{"input_tokens": e.state.InputTokens, "output_tokens": 0},
		},
	})
}

// TextDelta appends text to the currently open text block, opening one first
// if no block is open.
func (e *Emitter) TextDelta(text string) error {
	if !e.state.TextBlockStarted {
		if err := e.writeFrame("content_block_start", map[string]any{
			"type":          "content_block_start",
			"index":         e.state.BlockIndex,
			"content_block": map[string]any{"type": "text", "text": ""},
		}); err != nil {
			return err
		}
		e.state.OpenTextBlock()
	}
	e.state.FullText += text
	return e.writeFrame("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": e.state.BlockIndex,
		"delta": map[string]any{"type": "text_delta", "text": text},
	})
}

// ReasoningDelta emits a thinking-style delta on the currently open block.
func (e *Emitter) ReasoningDelta(text string) error {
	return e.writeFrame("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": e.state.BlockIndex,
		"delta": map[string]any{"type": "thinking_delta", "thinking": text},
	})
}

// CloseTextBlock closes the currently open text block, if any.
func (e *Emitter) CloseTextBlock() error {
	if !e.state.TextBlockStarted {
		return nil
	}
	if err := e.writeFrame("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": e.state.BlockIndex,
	}); err != nil {
		return err
	}
	e.state.CloseTextBlock()
	return nil
}

// ToolUse emits a complete tool_use triple (start/delta/stop), closing any
// open text block first, per the Warp state machine's TEXT_OPEN→tool_use
// transition.
func (e *Emitter) ToolUse(id, name, inputJSON string) error {
	if err := e.CloseTextBlock(); err != nil {
		return err
	}
	index := e.state.BlockIndex
	if err := e.writeFrame("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": index,
		"content_block": map[string]any{
			"type": "tool_use", "id": id, "name": name, "input": map[string]any{},
		},
	}); err != nil {
		return err
	}
	if err := e.writeFrame("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": index,
		"delta": map[string]any{"type": "input_json_delta", "partial_json": inputJSON},
	}); err != nil {
		return err
	}
	if err := e.writeFrame("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": index,
	}); err != nil {
		return err
	}
	e.state.AppendToolCall(id, name, inputJSON)
	return nil
}

// Finish closes any open block and emits the terminal message_delta +
// message_stop pair, per the fixed event sequence.
func (e *Emitter) Finish(stopReason, stopSequence string, outputTokens int) error {
	if err := e.CloseTextBlock(); err != nil {
		return err
	}
	if e.state.HasToolCalls() {
		stopReason = "tool_use"
	}
	e.state.StopReason = stopReason
	e.state.Usage.OutputTokens = outputTokens

	if !e.state.MarkDelta() {
		return errs.ProtocolError("message_delta emitted out of order", nil)
	}
	delta := map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nullableString(stopSequence),
		},
		"usage": map[string]any{"output_tokens": outputTokens},
	}
	if err := e.writeFrame("message_delta", delta); err != nil {
		return err
	}

	if !e.state.MarkStop() {
		return errs.ProtocolError("message_stop emitted out of order", nil)
	}
	if e.format == FormatOpenAI {
		if err := e.writeFrame("message_stop", map[string]any{"type": "message_stop"}); err != nil {
			return err
		}
		_, werr := e.w.Write([]byte("data: [DONE]\n\n"))
		if e.flush != nil {
			e.flush.Flush()
		}
		if werr != nil {
			return errs.Wrap(errs.KindCancelled, werr, "write done sentinel")
		}
		return nil
	}
	return e.writeFrame("message_stop", map[string]any{"type": "message_stop"})
}

// Abort emits a terminal error event and marks the state finished, used on
// every error path per the canonical engine's "all error paths emit an error
// SSE event and close" rule.
func (e *Emitter) Abort(err error) error {
	e.state.Finished = true
	event, data := httperr.SSEEvent(e.schema, err)
	e.mu.Lock()
	defer e.mu.Unlock()
	var werr error
	if e.format == FormatCanonical {
		_, werr = e.w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
	} else {
		_, werr = e.w.Write([]byte("data: " + string(data) + "\n\n"))
	}
	if e.flush != nil {
		e.flush.Flush()
	}
	return werr
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
