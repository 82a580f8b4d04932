// Package vertex implements the GCP Vertex AI adaptor: Claude-on-Vertex and
// Gemini envelope conversion, JWT-bearer auth, and SSE relay with wrapper-
// event filtering.
package vertex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/zap"

	"github.com/relaygate/core/adaptor"
	"github.com/relaygate/core/common/client"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/internal/logging"
	"github.com/relaygate/core/relaycore"
	"github.com/relaygate/core/token"
)

// Adaptor implements the Vertex backend for both Claude and Gemini models,
// distinguishing them by whether resolvedModel looks like a Gemini id.
type Adaptor struct {
	Refresher  *token.Refresher
	HTTPClient *http.Client
}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) Name() string { return "vertex" }

func (a *Adaptor) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	if client.HTTPClient != nil {
		return client.HTTPClient
	}
	return http.DefaultClient
}

func isGeminiModel(resolvedModel string) bool {
	return strings.HasPrefix(resolvedModel, "gemini")
}

func (a *Adaptor) RequestURL(c *credential.Credential, resolvedModel string, stream bool) (string, error) {
	if isGeminiModel(resolvedModel) {
		return geminiRequestURL(c, resolvedModel, stream), nil
	}
	return claudeRequestURL(c, resolvedModel, stream), nil
}

func (a *Adaptor) ConvertRequest(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resolvedModel string) ([]byte, error) {
	if isGeminiModel(resolvedModel) {
		logging.From(ctx).Debug("dispatching vertex request as gemini", zap.String("model", resolvedModel))
		return convertGeminiRequest(rc.Request)
	}
	logging.From(ctx).Debug("dispatching vertex request as claude", zap.String("model", resolvedModel))
	return convertClaudeRequest(rc.Request, resolvedModel)
}

func (a *Adaptor) SetupHeaders(ctx context.Context, req *http.Request, c *credential.Credential) error {
	accessToken, err := a.Refresher.GetValidAccessToken(ctx, c)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return nil
}

func (a *Adaptor) Do(req *http.Request) (*http.Response, error) {
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, errs.UpstreamTransient(0, "vertex request failed: "+err.Error())
	}
	return resp, nil
}

func (a *Adaptor) HandleResponse(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resp *http.Response, w http.ResponseWriter, stream bool) error {
	defer resp.Body.Close()
	w = relaycore.NewOpenAIFrameWriter(w, rc.ClientFormat)

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		logging.From(ctx).Warn("vertex upstream error",
			zap.Int("credential_id", c.Id), zap.Int("status", resp.StatusCode))
		return classifyVertexError(resp.StatusCode, body)
	}

	gemini := isGeminiModel(rc.ResolvedModel)

	if !stream {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.UpstreamTransient(0, "read vertex response: "+err.Error())
		}
		if gemini {
			converted, err := convertGeminiResponse(body)
			if err != nil {
				return errs.ProtocolError("decode gemini response", err)
			}
			out, err := json.Marshal(converted)
			if err != nil {
				return errs.ProtocolError("marshal converted gemini response", err)
			}
			body = out
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, werr := w.Write(body)
		return werr
	}

	if gemini {
		return a.relayGeminiStream(resp, w)
	}
	return a.relayClaudeStream(resp, w)
}

// relayClaudeStream relays the Vertex-on-Anthropic SSE stream verbatim,
// skipping vertex_event/ping wrapper frames.
func (a *Adaptor) relayClaudeStream(resp *http.Response, w http.ResponseWriter) error {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var pendingEvent string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			pendingEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if isVertexWrapperEvent(pendingEvent) {
				pendingEvent = ""
				continue
			}
			if pendingEvent != "" {
				w.Write([]byte("event: " + pendingEvent + "\n"))
			}
			w.Write([]byte(line + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
			pendingEvent = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(errs.KindCancelled, err, "read vertex claude stream")
	}
	return nil
}

// relayGeminiStream parses the Gemini streaming JSON-array-of-objects
// response and re-emits canonical content_block_delta/usage events.
func (a *Adaptor) relayGeminiStream(resp *http.Response, w http.ResponseWriter) error {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Headers are already committed at this point, so a retry with a
		// different credential would double-write the response; classify as
		// Cancelled (no-retry) rather than UpstreamTransient.
		return errs.Wrap(errs.KindCancelled, err, "read gemini stream")
	}

	var chunks []geminiResponse
	if err := json.Unmarshal(body, &chunks); err != nil {
		return errs.ProtocolError("decode gemini stream array", err)
	}

	var lastUsage geminiUsageMetadata
	for _, chunk := range chunks {
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			data, _ := json.Marshal(map[string]any{
				"type":  "content_block_delta",
				"delta": map[string]any{"type": "text_delta", "text": part.Text},
			})
			w.Write([]byte("event: content_block_delta\ndata: " + string(data) + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
		}
		lastUsage = chunk.UsageMetadata
	}

	usageData, _ := json.Marshal(map[string]any{
		"type": "usage",
		"usage": map[string]any{
			"input_tokens":  lastUsage.PromptTokenCount,
			"output_tokens": lastUsage.CandidatesTokenCount,
		},
	})
	w.Write([]byte("event: usage\ndata: " + string(usageData) + "\n\n"))
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// CountTokens probes {model}:countTokens against the same alias map used for
// generation, returning the upstream's reported token count.
func (a *Adaptor) CountTokens(ctx context.Context, c *credential.Credential, resolvedModel string, req *relaycore.CanonicalRequest) (int, error) {
	accessToken, err := a.Refresher.GetValidAccessToken(ctx, c)
	if err != nil {
		return 0, err
	}

	var body []byte
	if isGeminiModel(resolvedModel) {
		body, err = convertGeminiRequest(req)
	} else {
		body, err = convertClaudeRequest(req, resolvedModel)
	}
	if err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, countTokensURL(c, resolvedModel), bytes.NewReader(body))
	if err != nil {
		return 0, errs.ClientError("build countTokens request: " + err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.httpClient().Do(httpReq)
	if err != nil {
		return 0, errs.UpstreamTransient(0, "countTokens request failed: "+err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, errs.UpstreamTransient(0, "read countTokens response: "+err.Error())
	}
	if resp.StatusCode >= 400 {
		return 0, classifyVertexError(resp.StatusCode, respBody)
	}

	var decoded struct {
		TotalTokens int `json:"totalTokens"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return 0, errs.ProtocolError("decode countTokens response", err)
	}
	return decoded.TotalTokens, nil
}

func classifyVertexError(status int, body []byte) error {
	msg := string(bytes.TrimSpace(body))
	switch status {
	case http.StatusTooManyRequests:
		return errs.UpstreamTransient(status, "rate limited: "+msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.AuthError("vertex rejected credential: " + msg).WithStatus(status)
	case http.StatusBadRequest, http.StatusNotFound:
		return errs.UpstreamPermanent(status, msg)
	default:
		if status >= 500 {
			return errs.UpstreamTransient(status, "upstream 5xx: "+msg)
		}
		return errs.UpstreamPermanent(status, msg)
	}
}
