// Package anthropic implements the direct-to-Anthropic adaptor: a near
// passthrough that injects required headers and relays upstream SSE verbatim.
package anthropic

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

var _ adaptor.Adaptor = (*Adaptor)(nil)

const (
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
	anthropicBetaHeader = "oauth-2025-04-20,prompt-caching-2024-07-31"
	userAgent           = "relaygate/1.0"
)

// Adaptor forwards canonical Messages requests to the upstream Anthropic API.
type Adaptor struct {
	Refresher  *token.Refresher
	HTTPClient *http.Client
}

func (a *Adaptor) httpClient() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	if client.HTTPClient != nil {
		return client.HTTPClient
	}
	return http.DefaultClient
}

func (a *Adaptor) Name() string { return "anthropic" }

// RequestURL normalises an operator-supplied apiBaseUrl override to end at
// /v1/messages with beta=true appended, or falls back to the public API.
func (a *Adaptor) RequestURL(c *credential.Credential, resolvedModel string, stream bool) (string, error) {
	base := defaultBaseURL
	if c.APIBaseURL != "" {
		normalised, err := client.NormalizeBaseURL(c.APIBaseURL, "/v1/messages")
		if err != nil {
			return "", errs.ClientError("invalid apiBaseUrl: " + err.Error())
		}
		base = normalised
	}
	if !strings.Contains(base, "beta=") {
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		base += sep + "beta=true"
	}
	return base, nil
}

// ConvertRequest serialises the canonical request into Anthropic's native
// Messages body, prepending the Claude Code system prompt when the
// credential's token is OAuth-typed.
func (a *Adaptor) ConvertRequest(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resolvedModel string) ([]byte, error) {
	req := rc.Request
	system := req.System
	if token.IsOAuthToken(c.AccessToken) {
		logging.From(ctx).Debug("prepending claude code system prompt for oauth token", zap.Int("credential_id", c.Id))
		if system == "" {
			system = token.ClaudeCodeSystemPrompt
		} else {
			system = token.ClaudeCodeSystemPrompt + "\n\n" + system
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = relaycore.DefaultMaxTokens
	}

	body := map[string]any{
		"model":      resolvedModel,
		"messages":   req.Messages,
		"max_tokens": maxTokens,
		"stream":     req.Stream,
	}
	if system != "" {
		body["system"] = system
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
		body["tools"] = req.Tools
	}
	if req.ToolChoice != nil {
		body["tool_choice"] = req.ToolChoice
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errs.ClientError("marshal anthropic request: " + err.Error())
	}
	return encoded, nil
}

// SetupHeaders injects the headers the upstream requires.
func (a *Adaptor) SetupHeaders(ctx context.Context, req *http.Request, c *credential.Credential) error {
	accessToken, err := a.Refresher.GetValidAccessToken(ctx, c)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("anthropic-beta", anthropicBetaHeader)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return nil
}

// Do performs the upstream call.
func (a *Adaptor) Do(req *http.Request) (*http.Response, error) {
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, errs.UpstreamTransient(0, "anthropic request failed: "+err.Error())
	}
	return resp, nil
}

// HandleResponse relays the upstream body. Non-streaming responses are
// copied through verbatim; streaming responses are parsed line-by-line and
// re-emitted, prefixed with a synthetic rate_limits event when the upstream
// headers carried limit metadata.
func (a *Adaptor) HandleResponse(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resp *http.Response, w http.ResponseWriter, stream bool) error {
	defer resp.Body.Close()
	w = relaycore.NewOpenAIFrameWriter(w, rc.ClientFormat)

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		logging.From(ctx).Warn("anthropic upstream error",
			zap.Int("credential_id", c.Id), zap.Int("status", resp.StatusCode))
		return classifyUpstreamError(resp.StatusCode, body)
	}

	rl := parseRateLimitHeaders(resp.Header)
	_ = rl // persisted by the caller via credential.Store.UpdateRateLimits

	if !stream {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return errs.UpstreamTransient(0, "read anthropic response: "+err.Error())
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, werr := w.Write(body)
		return werr
	}

	return a.relaySSE(resp, w, rl)
}

func (a *Adaptor) relaySSE(resp *http.Response, w http.ResponseWriter, rl credential.RateLimits) error {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	if hasRateLimitData(rl) {
		data, _ := json.Marshal(map[string]any{"type": "rate_limits", "rate_limits": rl})
		w.Write([]byte("event: rate_limits\ndata: " + string(data) + "\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var pendingEvent string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			pendingEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			w.Write([]byte(line + "\n"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				w.Write([]byte("data: [DONE]\n\n"))
				if flusher != nil {
					flusher.Flush()
				}
				return nil
			}
			w.Write([]byte(line + "\n\n"))
			if flusher != nil {
				flusher.Flush()
			}
			pendingEvent = ""
		case line == "":
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(errs.KindCancelled, err, "read anthropic stream")
	}
	return nil
}

func hasRateLimitData(rl credential.RateLimits) bool {
	return rl.RequestsLimit != 0 || rl.TokensLimit != 0
}

func parseRateLimitHeaders(h http.Header) credential.RateLimits {
	return token.ParseAnthropicRateLimitHeaders(h)
}

func classifyUpstreamError(status int, body []byte) error {
	msg := string(bytes.TrimSpace(body))
	switch status {
	case http.StatusTooManyRequests:
		return errs.UpstreamTransient(status, "rate limited: "+msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.AuthError("anthropic rejected credential: " + msg).WithStatus(status)
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return errs.UpstreamPermanent(status, msg)
	default:
		if status >= 500 {
			return errs.UpstreamTransient(status, "upstream 5xx: "+msg)
		}
		return errs.UpstreamPermanent(status, msg)
	}
}
