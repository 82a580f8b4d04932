// Package middleware implements the gin middleware chain shared by every
// ingress endpoint: API-key authentication and request logging.
package middleware

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/core/apikey"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/httperr"
)

// ContextKeyAPIKey is the gin context key holding the authenticated *apikey.APIKey.
const ContextKeyAPIKey = "relaygate.apiKey"

// extractRawKey returns the bearer credential from either Authorization or
// X-Api-Key, matching the two header conventions named in the external
// interfaces design (OpenAI-style Bearer, Anthropic-style X-Api-Key).
func extractRawKey(c *gin.Context) string {
	if raw := c.GetHeader("Authorization"); raw != "" {
		return strings.TrimPrefix(raw, "Bearer ")
	}
	return c.GetHeader("X-Api-Key")
}

// Auth authenticates every client-facing request against store by the
// SHA-256 hash of the presented key. On success it stamps the authenticated
// *apikey.APIKey onto the gin context under ContextKeyAPIKey and records a
// best-effort use-count touch once the handler returns.
func Auth(store apikey.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractRawKey(c)
		if raw == "" {
			writeAuthError(c, errs.AuthError("missing API key"))
			return
		}

		hash := apikey.Hash(raw)
		key, err := store.GetByHash(c.Request.Context(), hash)
		if err != nil {
			writeAuthError(c, errs.AuthError("invalid API key"))
			return
		}
		if !key.Active() {
			writeAuthError(c, errs.AuthError("API key is disabled"))
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()

		// Touch is best-effort and runs after the handler, using a
		// detached context since the request's own context may already be
		// cancelled by the time the response finishes flushing.
		_ = store.Touch(context.Background(), key.Id, time.Now())
	}
}

// schemaForPath picks the client-facing error envelope by the endpoint
// prefix, so an auth failure on /v1/messages still reads like an Anthropic
// error and one on /v1beta/... reads like a Gemini error.
func schemaForPath(path string) httperr.Schema {
	switch {
	case strings.HasPrefix(path, "/v1/messages"), strings.HasPrefix(path, "/w/v1/messages"):
		return httperr.SchemaAnthropic
	case strings.HasPrefix(path, "/v1beta/"):
		return httperr.SchemaGemini
	default:
		return httperr.SchemaOpenAI
	}
}

func writeAuthError(c *gin.Context, err *errs.Error) {
	httperr.WriteJSON(c, schemaForPath(c.Request.URL.Path), err)
	c.Abort()
}

// ClientIP parses gin's resolved client IP into net.IP, falling back to nil
// when it can't be parsed (e.g. a unix socket peer).
func ClientIP(c *gin.Context) net.IP {
	return net.ParseIP(c.ClientIP())
}
