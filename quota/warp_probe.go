package quota

import (
	"context"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/token"
)

// WarpProbe mirrors VertexProbe: Warp's OAuth token exchange carries no
// usage/quota payload, so a successful refresh is the only signal available
// and the credential's operator-maintained quotaLimit/quotaUsed pass through
// unchanged.
type WarpProbe struct {
	Refresher *token.Refresher
}

var _ VendorProbe = (*WarpProbe)(nil)

func (p *WarpProbe) Probe(ctx context.Context, c *credential.Credential) (limit, used int64, err error) {
	if _, err := p.Refresher.GetValidAccessToken(ctx, c); err != nil {
		return 0, 0, err
	}
	return c.QuotaLimit, c.QuotaUsed, nil
}
