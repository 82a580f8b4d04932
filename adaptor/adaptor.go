// Package adaptor defines the common interface every vendor backend
// implements: translate a canonical request into the vendor's wire format,
// perform the upstream call, and translate the response back.
package adaptor

import (
	"context"
	"net/http"

	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/relaycore"
)

// Adaptor is implemented once per upstream vendor (Anthropic, Vertex, Warp).
type Adaptor interface {
	// ConvertRequest translates a canonical request into the vendor's wire
	// body, given the resolved upstream model id.
	ConvertRequest(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resolvedModel string) (body []byte, err error)

	// RequestURL returns the upstream URL for this call.
	RequestURL(c *credential.Credential, resolvedModel string, stream bool) (string, error)

	// SetupHeaders sets vendor-required headers (auth, version, beta flags) on req.
	SetupHeaders(ctx context.Context, req *http.Request, c *credential.Credential) error

	// Do performs the upstream HTTP call.
	Do(req *http.Request) (*http.Response, error)

	// HandleResponse streams or buffers the upstream response into the
	// canonical streaming engine / a canonical non-streaming result.
	HandleResponse(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resp *http.Response, w http.ResponseWriter, stream bool) error

	// Name identifies the adaptor for logging/metrics.
	Name() string
}
