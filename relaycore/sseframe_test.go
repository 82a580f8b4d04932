package relaycore

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenAIFrameWriter_StripsEventLines(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewOpenAIFrameWriter(rec, ClientFormatOpenAI)

	w.Write([]byte("event: content_block_delta\n"))
	w.Write([]byte("data: {\"type\":\"content_block_delta\"}\n\n"))
	w.Write([]byte("event: usage\ndata: {\"type\":\"usage\"}\n\n"))
	w.Write([]byte("data: [DONE]\n\n"))

	assert.Equal(t,
		"data: {\"type\":\"content_block_delta\"}\n\ndata: {\"type\":\"usage\"}\n\ndata: [DONE]\n\n",
		rec.Body.String())
}

func TestNewOpenAIFrameWriter_PassesThroughForAnthropicFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewOpenAIFrameWriter(rec, ClientFormatAnthropic)

	w.Write([]byte("event: content_block_delta\ndata: {}\n\n"))

	assert.Equal(t, "event: content_block_delta\ndata: {}\n\n", rec.Body.String())
	if _, ok := w.(*OpenAIFrameWriter); ok {
		t.Fatal("expected unwrapped writer for non-openai format")
	}
}
