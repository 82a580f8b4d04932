package quota

import (
	"context"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/token"
)

// VertexProbe has no usage endpoint to call: Vertex AI quota is a GCP
// project-level Cloud Monitoring metric, not a per-credential API response,
// so there is nothing this probe can read back per poll. It instead treats a
// successful token refresh as the liveness signal and reports the
// credential's operator-maintained quotaLimit/quotaUsed unchanged, so a dead
// service account still surfaces as a probe failure.
type VertexProbe struct {
	Refresher *token.Refresher
}

var _ VendorProbe = (*VertexProbe)(nil)

func (p *VertexProbe) Probe(ctx context.Context, c *credential.Credential) (limit, used int64, err error) {
	if _, err := p.Refresher.GetValidAccessToken(ctx, c); err != nil {
		return 0, 0, err
	}
	return c.QuotaLimit, c.QuotaUsed, nil
}
