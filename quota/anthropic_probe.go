package quota

import (
	"context"
	"net/http"

	"github.com/Laisky/errors/v2"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/token"
)

// unifiedWindowDenominator expresses Anthropic's unified 5h utilization
// fraction (0..1, reported for OAuth-typed tokens that carry no classic
// request-count headers) as a limit/used pair on the same int64 scale the
// rest of the quota model uses.
const unifiedWindowDenominator = 10000

// AnthropicProbe reuses the minimal Messages call already used to verify a
// freshly-imported credential, reading usage back from the response's
// rate-limit headers instead of issuing a separate usage-only request (the
// Anthropic API has no dedicated quota endpoint).
type AnthropicProbe struct {
	HTTPClient *http.Client
}

var _ VendorProbe = (*AnthropicProbe)(nil)

func (p *AnthropicProbe) Probe(ctx context.Context, c *credential.Credential) (limit, used int64, err error) {
	result, err := token.VerifyAnthropicCredential(ctx, p.client(), c.AccessToken)
	if err != nil {
		return 0, 0, err
	}
	if !result.Valid {
		return 0, 0, errors.Errorf("anthropic quota probe rejected (status %d): %s", result.Status, result.Error)
	}

	rl := result.RateLimits
	if rl.RequestsLimit > 0 {
		return rl.RequestsLimit, rl.RequestsLimit - rl.RequestsRemaining, nil
	}
	return unifiedWindowDenominator, int64(rl.Unified5hUtil * unifiedWindowDenominator), nil
}

func (p *AnthropicProbe) client() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}
