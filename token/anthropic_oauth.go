package token

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"golang.org/x/oauth2"

	"github.com/relaygate/core/common"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
)

// ClaudeCodeSystemPrompt is prepended to the system field on every request
// that carries an OAuth-typed Anthropic token, matching what the upstream
// expects from an authorised Claude Code client.
const ClaudeCodeSystemPrompt = "You are Claude Code, Anthropic's official CLI for Claude."

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// IsOAuthToken reports whether token is an OAuth-issued Anthropic credential
// (as opposed to a long-lived API key), identified by its prefix.
func IsOAuthToken(tok string) bool {
	return strings.HasPrefix(tok, "sk-ant-oat")
}

// AnthropicOAuthRefresher has no proactive refresh path: Anthropic OAuth/API
// tokens are long-lived, and staleness is instead detected from rate-limit
// response headers. Refresh degenerates to re-verifying the stored token.
type AnthropicOAuthRefresher struct {
	HTTPClient *http.Client
}

var _ VendorRefresher = (*AnthropicOAuthRefresher)(nil)

// Refresh re-verifies the credential's existing token and reports it valid
// for another hour; it never exchanges a new token since none is available.
// The verification is wrapped as an oauth2.TokenSource so it composes with
// the same caching contract (oauth2.ReuseTokenSource) as a real exchange.
func (a *AnthropicOAuthRefresher) Refresh(ctx context.Context, c *credential.Credential) (string, time.Time, error) {
	src := oauth2.ReuseTokenSource(nil, &anthropicTokenSource{
		ctx: ctx, client: a.client(), accessToken: c.AccessToken,
	})
	tok, err := src.Token()
	if err != nil {
		return "", time.Time{}, err
	}
	return tok.AccessToken, tok.Expiry, nil
}

func (a *AnthropicOAuthRefresher) client() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

// anthropicTokenSource implements oauth2.TokenSource by re-verifying an
// already-issued access token rather than exchanging one, since Anthropic's
// OAuth tokens here are long-lived and carry no refresh grant.
type anthropicTokenSource struct {
	ctx         context.Context
	client      *http.Client
	accessToken string
}

func (s *anthropicTokenSource) Token() (*oauth2.Token, error) {
	result, err := VerifyAnthropicCredential(s.ctx, s.client, s.accessToken)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, errs.TokenRefreshFailed(result.Status, errors.Errorf("anthropic credential rejected: %s", result.Error))
	}
	return &oauth2.Token{
		AccessToken: s.accessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

// VerificationResult is the outcome of a probe call used both to validate a
// freshly-imported credential and to periodically re-check an existing one.
type VerificationResult struct {
	Valid      bool
	Status     int
	Error      string
	Model      string
	RateLimits credential.RateLimits
}

// VerifyAnthropicCredential sends a minimal Messages probe (Haiku, max_tokens=10)
// to confirm a token is live, prepending the Claude Code system prompt when the
// token looks OAuth-typed.
func VerifyAnthropicCredential(ctx context.Context, client *http.Client, accessToken string) (*VerificationResult, error) {
	payload := map[string]any{
		"model":      "claude-haiku-4-5",
		"max_tokens": 10,
		"messages": []map[string]any{
			{"role": "user", "content": "ping"},
		},
	}
	if IsOAuthToken(accessToken) {
		payload["system"] = ClaudeCodeSystemPrompt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal verification probe")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicMessagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build verification request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send verification probe")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read verification response")
	}

	result := &VerificationResult{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusOK {
		result.Valid = true
		var decoded struct {
			Model string `json:"model"`
		}
		_ = json.Unmarshal(respBody, &decoded)
		result.Model = decoded.Model
		result.RateLimits = ParseAnthropicRateLimitHeaders(resp.Header)
		return result, nil
	}

	result.Error = common.SanitizePreview(respBody)
	return result, nil
}

// ParseAnthropicRateLimitHeaders extracts the rate-limit window set documented
// in the Anthropic adapter design, including the OAuth unified windows.
func ParseAnthropicRateLimitHeaders(h http.Header) credential.RateLimits {
	var rl credential.RateLimits
	rl.RequestsLimit = parseInt64(h.Get("anthropic-ratelimit-requests-limit"))
	rl.RequestsRemaining = parseInt64(h.Get("anthropic-ratelimit-requests-remaining"))
	rl.RequestsReset = parseRFC3339(h.Get("anthropic-ratelimit-requests-reset"))
	rl.TokensLimit = parseInt64(h.Get("anthropic-ratelimit-tokens-limit"))
	rl.TokensRemaining = parseInt64(h.Get("anthropic-ratelimit-tokens-remaining"))
	rl.TokensReset = parseRFC3339(h.Get("anthropic-ratelimit-tokens-reset"))
	rl.InputTokensLimit = parseInt64(h.Get("anthropic-ratelimit-input-tokens-limit"))
	rl.OutputTokensLimit = parseInt64(h.Get("anthropic-ratelimit-output-tokens-limit"))
	rl.Unified5hUtil = parseFloat(h.Get("anthropic-unified-5h-utilization"))
	rl.Unified5hReset = parseRFC3339(h.Get("anthropic-unified-5h-reset"))
	rl.Unified7dUtil = parseFloat(h.Get("anthropic-unified-7d-utilization"))
	rl.Unified7dReset = parseRFC3339(h.Get("anthropic-unified-7d-reset"))
	return rl
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseRFC3339(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
