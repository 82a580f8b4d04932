package anthropic

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/credential"
)

func TestAdaptor_RequestURL_DefaultsToPublicAPI(t *testing.T) {
	a := &Adaptor{}
	url, err := a.RequestURL(&credential.Credential{}, "claude-sonnet-4-5-20250514", false)
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/messages?beta=true", url)
}

func TestAdaptor_RequestURL_NormalisesOperatorBaseURL(t *testing.T) {
	a := &Adaptor{}
	url, err := a.RequestURL(&credential.Credential{APIBaseURL: "https://proxy.internal.example"}, "model", false)
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.internal.example/v1/messages?beta=true", url)
}

func TestClassifyUpstreamError_RateLimitIsTransient(t *testing.T) {
	err := classifyUpstreamError(http.StatusTooManyRequests, []byte(`{"error":"rate limited"}`))
	assert.Error(t, err)
}

func TestClassifyUpstreamError_AuthFailureIsAuthError(t *testing.T) {
	err := classifyUpstreamError(http.StatusUnauthorized, []byte(`{"error":"invalid key"}`))
	assert.Error(t, err)
}

func TestParseRateLimitHeaders_ExtractsUnifiedWindows(t *testing.T) {
	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-limit", "1000")
	h.Set("anthropic-ratelimit-requests-remaining", "998")
	h.Set("anthropic-unified-5h-utilization", "0.42")
	rl := parseRateLimitHeaders(h)
	assert.EqualValues(t, 1000, rl.RequestsLimit)
	assert.EqualValues(t, 998, rl.RequestsRemaining)
	assert.InDelta(t, 0.42, rl.Unified5hUtil, 0.0001)
}
