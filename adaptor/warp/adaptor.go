// Package warp implements the Warp protocol adaptor: bidirectional
// translation between the canonical message model and Warp's Protobuf
// request/response schema, delivered as SSE with base64-encoded payloads.
package warp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/zap"

	"github.com/relaygate/core/adaptor"
	"github.com/relaygate/core/common/client"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/errs"
	"github.com/relaygate/core/httperr"
	"github.com/relaygate/core/internal/logging"
	"github.com/relaygate/core/relaycore"
	"github.com/relaygate/core/streamengine"
	"github.com/relaygate/core/token"
)

const requestURL = "https://app.warp.dev/ai/multi-agent"

const (
	warpClientID      = "relaygate"
	warpClientVersion = "1.0.0"
	warpOSCategory    = "linux"
	warpOSName        = "linux"
	warpOSVersion     = "unknown"
)

// Adaptor implements the Warp backend.
type Adaptor struct {
	Refresher  *token.Refresher
	Sessions   *SessionStore
	HTTPClient *http.Client
}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) Name() string { return "warp" }

func (a *Adaptor) sessions() *SessionStore {
	if a.Sessions == nil {
		a.Sessions = NewSessionStore()
	}
	return a.Sessions
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

func (a *Adaptor) RequestURL(c *credential.Credential, resolvedModel string, stream bool) (string, error) {
	return requestURL, nil
}

func (a *Adaptor) sessionFor(rc *relaycore.RequestContext, resolvedModel string) (*Session, string) {
	sessionID := readSessionID(rc.Request.Metadata)
	if sessionID == "" {
		return NewSession(resolvedModel, "/tmp", "", ""), ""
	}
	return a.sessions().GetOrCreate(sessionID, resolvedModel, "/tmp", "", ""), sessionID
}

// ConvertRequest builds the Warp wire.Request for rc, using/creating the
// session named by the canonical request's metadata.session_id.
func (a *Adaptor) ConvertRequest(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resolvedModel string) ([]byte, error) {
	rc.ResolvedModel = resolvedModel
	sess, sessionID := a.sessionFor(rc, resolvedModel)
	if sessionID != "" {
		logging.From(ctx).Debug("reusing warp session", zap.String("session_id", sessionID), zap.String("turn_id", sess.TurnID))
		sess.RotateTurn()
	} else {
		logging.From(ctx).Debug("no session_id on request, using ephemeral warp session")
	}

	wireReq, err := BuildRequest(rc.Request, resolvedModel, sess)
	if err != nil {
		return nil, err
	}
	return wireReq.Marshal(), nil
}

func (a *Adaptor) SetupHeaders(ctx context.Context, req *http.Request, c *credential.Credential) error {
	accessToken, err := a.Refresher.GetValidAccessToken(ctx, c)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-warp-client-id", warpClientID)
	req.Header.Set("x-warp-client-version", warpClientVersion)
	req.Header.Set("x-warp-os-category", warpOSCategory)
	req.Header.Set("x-warp-os-name", warpOSName)
	req.Header.Set("x-warp-os-version", warpOSVersion)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return nil
}

func (a *Adaptor) Do(req *http.Request) (*http.Response, error) {
	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, errs.UpstreamTransient(0, "warp request failed: "+err.Error())
	}
	return resp, nil
}

// HandleResponse decodes Warp's SSE-framed, base64-encoded ResponseEvent
// stream and drives it through the canonical streaming state machine.
// Warp's upstream is SSE regardless of the client's stream flag; a
// non-streaming downstream request still gets the canonical emitter's
// framing today (buffering into one JSON body is not yet implemented).
func (a *Adaptor) HandleResponse(ctx context.Context, rc *relaycore.RequestContext, c *credential.Credential, resp *http.Response, w http.ResponseWriter, stream bool) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		logging.From(ctx).Warn("warp upstream error",
			zap.Int("credential_id", c.Id), zap.Int("status", resp.StatusCode))
		return classifyWarpError(resp.StatusCode, body)
	}

	sess, _ := a.sessionFor(rc, rc.ResolvedModel)

	format := streamengine.FormatCanonical
	schema := httperr.SchemaAnthropic
	if rc.ClientFormat == relaycore.ClientFormatOpenAI {
		format = streamengine.FormatOpenAI
		schema = httperr.SchemaOpenAI
	}

	state := relaycore.NewSSEState(rc.RequestID, rc.ResolvedModel, 0)
	emitter := streamengine.New(w, state, format, schema)
	messageStarted := false

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			logging.From(ctx).Debug("skipping malformed warp sse frame", zap.Error(err))
			continue // malformed frame: skip and continue, per the schema-only decode policy
		}
		events, err := DecodeFrame(raw, sess)
		if err != nil {
			logging.From(ctx).Debug("skipping undecodable warp event", zap.Error(err))
			continue
		}
		for _, ev := range events {
			if err := RunStateMachine(emitter, ev, &messageStarted); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return emitter.Abort(errs.Wrap(errs.KindCancelled, err, "read warp stream"))
	}
	if !state.Finished {
		return emitter.Abort(errs.ProtocolError("warp stream ended without a finished event", nil))
	}
	return nil
}

func classifyWarpError(status int, body []byte) error {
	msg := string(bytes.TrimSpace(body))
	switch status {
	case http.StatusTooManyRequests:
		return errs.UpstreamTransient(status, "rate limited: "+msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errs.AuthError("warp rejected credential: " + msg).WithStatus(status)
	default:
		if status >= 500 {
			return errs.UpstreamTransient(status, "upstream 5xx: "+msg)
		}
		return errs.UpstreamPermanent(status, msg)
	}
}
