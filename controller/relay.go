package controller

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/relaygate/core/adaptor"
	"github.com/relaygate/core/apikey"
	"github.com/relaygate/core/apilog"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/gatewayrouter"
	"github.com/relaygate/core/httperr"
	"github.com/relaygate/core/internal/logging"
	"github.com/relaygate/core/middleware"
	"github.com/relaygate/core/relaycore"
	"github.com/relaygate/core/selector"
)

// Relay is the one handler behind every client-facing generation endpoint: it
// parses the request into the canonical model, resolves a vendor, and drives
// the selector's retry loop against that vendor's adaptor.
type Relay struct {
	Selector *selector.Selector
	Adaptors map[gatewayrouter.Vendor]adaptor.Adaptor
	Logs     apilog.Store
}

func (rl *Relay) adaptorFor(vendor gatewayrouter.Vendor) (adaptor.Adaptor, error) {
	a, ok := rl.Adaptors[vendor]
	if !ok {
		return nil, errs.ClientError("no adaptor registered for vendor " + string(vendor))
	}
	return a, nil
}

// schemaFor picks the client-facing error envelope for the endpoint family
// the request came in on.
func schemaFor(family gatewayrouter.Family) httperr.Schema {
	switch family {
	case gatewayrouter.FamilyOpenAIChat, gatewayrouter.FamilyWarpChat:
		return httperr.SchemaOpenAI
	case gatewayrouter.FamilyGeminiGenerate, gatewayrouter.FamilyGeminiStream:
		return httperr.SchemaGemini
	default:
		return httperr.SchemaAnthropic
	}
}

// clientFormatFor collapses the endpoint family into the two-valued SSE
// framing convention the adaptors understand; Gemini endpoints use the
// canonical named-event framing, the same as Anthropic's.
func clientFormatFor(family gatewayrouter.Family) string {
	if family == gatewayrouter.FamilyOpenAIChat || family == gatewayrouter.FamilyWarpChat {
		return relaycore.ClientFormatOpenAI
	}
	return relaycore.ClientFormatAnthropic
}

func parseCanonicalRequest(family gatewayrouter.Family, pathModel string, body []byte) (*relaycore.CanonicalRequest, error) {
	switch family {
	case gatewayrouter.FamilyOpenAIChat, gatewayrouter.FamilyWarpChat:
		return ParseOpenAIChatRequest(body)
	case gatewayrouter.FamilyAnthropicMessages, gatewayrouter.FamilyWarpMessages, gatewayrouter.FamilyWarpMessagesProto:
		// /w/v1/messages/proto carries the same JSON body shape as
		// /w/v1/messages on the wire today; nothing in this gateway
		// produces or consumes a raw-protobuf client request, so it is
		// parsed identically rather than round-tripping through an
		// otherwise-unused decoder.
		return ParseAnthropicMessagesRequest(body)
	case gatewayrouter.FamilyGeminiGenerate, gatewayrouter.FamilyGeminiStream:
		return ParseGeminiGenerateRequest(body, pathModel)
	default:
		return nil, errs.ClientError("unsupported endpoint family")
	}
}

// Handle is the gin.HandlerFunc for every generation endpoint.
func (rl *Relay) Handle(c *gin.Context) {
	schema := httperr.SchemaAnthropic

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httperr.WriteJSON(c, schema, errs.ClientError("read request body: "+err.Error()))
		return
	}

	route, err := gatewayrouter.RouteForPath(c.Request.URL.Path)
	if err != nil {
		httperr.WriteJSON(c, schema, err)
		return
	}
	schema = schemaFor(route.Family)

	canonical, err := parseCanonicalRequest(route.Family, route.PathModel, body)
	if err != nil {
		httperr.WriteJSON(c, schema, err)
		return
	}
	if canonical.MaxTokens == 0 {
		canonical.MaxTokens = relaycore.DefaultMaxTokens
	}

	decision, err := gatewayrouter.Resolve(c.Request.URL.Path, canonical.Model)
	if err != nil {
		httperr.WriteJSON(c, schema, err)
		return
	}
	logging.From(c.Request.Context()).Debug("relay request received",
		zap.String("path", c.Request.URL.Path),
		zap.String("vendor", string(decision.Vendor)),
		zap.String("requested_model", canonical.Model),
		zap.String("resolved_model", decision.ResolvedModel),
		zap.Bool("stream", canonical.Stream))

	if key, ok := c.Get(middleware.ContextKeyAPIKey); ok {
		if !key.(*apikey.APIKey).AllowsModel(canonical.Model) {
			httperr.WriteJSON(c, schema, errs.ClientError("model not permitted for this API key"))
			return
		}
	}

	rc := relaycore.NewRequestContext(canonical)
	rc.ClientFormat = clientFormatFor(route.Family)
	rc.ResolvedModel = decision.ResolvedModel
	rc.IPAddress = middleware.ClientIP(c)
	rc.UserAgent = c.Request.UserAgent()
	if requestID := middleware.RequestID(c); requestID != "" {
		rc.RequestID = requestID
	}
	if key, ok := c.Get(middleware.ContextKeyAPIKey); ok {
		rc.APIKeyHash = key.(*apikey.APIKey).KeyHash
	}

	a, err := rl.adaptorFor(decision.Vendor)
	if err != nil {
		httperr.WriteJSON(c, schema, err)
		return
	}

	var usedCredential *credential.Credential
	attempts := 0

	relayErr := rl.Selector.WithCredential(c.Request.Context(), credential.Vendor(decision.Vendor), func(ctx context.Context, cred *credential.Credential) error {
		attempts++
		usedCredential = cred
		rc.TriedCredentialIDs = append(rc.TriedCredentialIDs, cred.Id)
		logging.From(ctx).Debug("relay attempt",
			zap.String("request_id", rc.RequestID),
			zap.Int("attempt", attempts),
			zap.Int("credential_id", cred.Id))

		reqBody, err := a.ConvertRequest(ctx, rc, cred, rc.ResolvedModel)
		if err != nil {
			return err
		}

		url, err := a.RequestURL(cred, rc.ResolvedModel, canonical.Stream)
		if err != nil {
			return err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return errs.ClientError("build upstream request: " + err.Error())
		}
		if err := a.SetupHeaders(ctx, httpReq, cred); err != nil {
			return err
		}

		resp, err := a.Do(httpReq)
		if err != nil {
			return err
		}

		return a.HandleResponse(ctx, rc, cred, resp, c.Writer, canonical.Stream)
	})

	rl.logAttempt(c, rl.Logs, rc, route, decision, usedCredential, attempts, relayErr)

	if relayErr == nil {
		return
	}
	logging.From(c.Request.Context()).Warn("relay attempt failed",
		zap.String("request_id", rc.RequestID),
		zap.Int("attempts", attempts),
		zap.Error(relayErr))

	if !c.Writer.Written() {
		httperr.WriteJSON(c, schema, relayErr)
		return
	}
	writeStreamError(c.Writer, schema, relayErr)
}

// writeStreamError appends a terminal SSE error frame to a response that has
// already started streaming, mirroring the framing adaptor/warp's Emitter
// uses for the same two schemas.
func writeStreamError(w http.ResponseWriter, schema httperr.Schema, err error) {
	event, data := httperr.SSEEvent(schema, err)
	flusher, _ := w.(http.Flusher)
	if schema == httperr.SchemaOpenAI {
		w.Write([]byte("data: " + string(data) + "\n\n"))
	} else {
		w.Write([]byte("event: " + event + "\ndata: " + string(data) + "\n\n"))
	}
	if flusher != nil {
		flusher.Flush()
	}
}

// logAttempt appends a best-effort apilog.Entry once the relay attempt
// finishes; a logging failure must never surface to the client.
func (rl *Relay) logAttempt(c *gin.Context, logs apilog.Store, rc *relaycore.RequestContext, route gatewayrouter.Route, decision gatewayrouter.Decision, cred *credential.Credential, attempts int, relayErr error) {
	if logs == nil {
		return
	}

	entry := &apilog.Entry{
		RequestId:    rc.RequestID,
		Vendor:       string(decision.Vendor),
		Model:        rc.Request.Model,
		ClientFormat: rc.ClientFormat,
		Path:         c.Request.URL.Path,
		Stream:       rc.Request.Stream,
		DurationMs:   time.Since(rc.StartTime).Milliseconds(),
		RetryAttempts: attempts,
		IPAddress:    rc.IPAddress.String(),
		UserAgent:    rc.UserAgent,
	}
	if cred != nil {
		entry.CredentialId = cred.Id
	}
	if key, ok := c.Get(middleware.ContextKeyAPIKey); ok {
		entry.APIKeyId = key.(*apikey.APIKey).Id
	}

	if relayErr != nil {
		classified, ok := errs.As(relayErr)
		if ok {
			entry.ErrorKind = classified.Kind.String()
			entry.ErrorMsg = classified.Message
			entry.StatusCode = httperr.StatusFor(classified)
		} else {
			entry.ErrorMsg = relayErr.Error()
			entry.StatusCode = http.StatusInternalServerError
		}
	} else {
		entry.StatusCode = http.StatusOK
	}

	if err := logs.Append(context.Background(), entry); err != nil {
		logging.SysWarn("append api log failed", zap.String("request_id", rc.RequestID), zap.Error(err))
	}
}
