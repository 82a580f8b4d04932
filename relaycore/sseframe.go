package relaycore

import (
	"net/http"
	"strings"
)

// OpenAIFrameWriter wraps a ResponseWriter used by an adaptor that relays
// upstream SSE verbatim (Anthropic, Vertex) and strips the "event: ...\n"
// framing lines, matching the bare "data: <json>\n\n" convention the
// canonical SSE format names for OpenAI-shaped endpoints (ClientFormatOpenAI).
// The JSON payload on each data line is left untouched — only the framing
// changes, the same simplification streamengine.Emitter applies for Warp.
type OpenAIFrameWriter struct {
	http.ResponseWriter
}

// NewOpenAIFrameWriter wraps w, or returns w unchanged if format isn't
// ClientFormatOpenAI, so callers can wrap unconditionally.
func NewOpenAIFrameWriter(w http.ResponseWriter, clientFormat string) http.ResponseWriter {
	if clientFormat != ClientFormatOpenAI {
		return w
	}
	return &OpenAIFrameWriter{ResponseWriter: w}
}

func (f *OpenAIFrameWriter) Write(p []byte) (int, error) {
	lines := strings.Split(string(p), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "event:") {
			continue
		}
		kept = append(kept, line)
	}
	if _, err := f.ResponseWriter.Write([]byte(strings.Join(kept, "\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush implements http.Flusher by delegating to the wrapped writer, so
// relay loops that type-assert w.(http.Flusher) keep working unwrapped.
func (f *OpenAIFrameWriter) Flush() {
	if flusher, ok := f.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
