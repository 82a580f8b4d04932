package warp

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/core/adaptor/warp/wire"
	"github.com/relaygate/core/credential"
	"github.com/relaygate/core/relaycore"
	"github.com/relaygate/core/token"
)

func TestAdaptor_RequestURL_IsFixedEndpoint(t *testing.T) {
	a := &Adaptor{}
	url, err := a.RequestURL(&credential.Credential{}, "claude-4-5-sonnet", true)
	require.NoError(t, err)
	assert.Equal(t, requestURL, url)
}

func TestAdaptor_ConvertRequest_BuildsWireRequestAndStampsResolvedModel(t *testing.T) {
	a := &Adaptor{Sessions: NewSessionStore()}
	rc := relaycore.NewRequestContext(&relaycore.CanonicalRequest{
		Messages: []relaycore.Message{
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}},
		},
	})

	body, err := a.ConvertRequest(context.Background(), rc, &credential.Credential{}, "claude-4-5-sonnet")
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, "claude-4-5-sonnet", rc.ResolvedModel)

	raw, err := wire.DecodeRaw(body)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestAdaptor_SetupHeaders_SetsWarpHeadersAndBearerToken(t *testing.T) {
	a := &Adaptor{Refresher: token.New(nil, nil)}
	c := &credential.Credential{AccessToken: "tok-123"}
	req := httptest.NewRequest(http.MethodPost, requestURL, nil)

	require.NoError(t, a.SetupHeaders(context.Background(), req, c))

	assert.Equal(t, "Bearer tok-123", req.Header.Get("Authorization"))
	assert.Equal(t, "application/x-protobuf", req.Header.Get("Content-Type"))
	assert.Equal(t, warpClientID, req.Header.Get("x-warp-client-id"))
	assert.Equal(t, warpClientVersion, req.Header.Get("x-warp-client-version"))
}

func TestAdaptor_HandleResponse_StreamsCanonicalSSEFromWarpFrames(t *testing.T) {
	a := &Adaptor{Sessions: NewSessionStore()}
	rc := relaycore.NewRequestContext(&relaycore.CanonicalRequest{
		Messages: []relaycore.Message{
			{Role: relaycore.RoleUser, Content: []relaycore.ContentBlock{{Type: relaycore.BlockText, Text: "hi"}}},
		},
	})
	rc.ResolvedModel = "claude-4-5-sonnet"
	rc.ClientFormat = relaycore.ClientFormatAnthropic

	frames := [][]byte{
		wire.EncodeInitEvent("conv-1", "req-1"),
		wire.EncodeAppendTextEvent("hello", false),
		wire.EncodeFinishedEvent("done", []wire.TokenUsage{{InputTokens: 1, OutputTokens: 2}}),
	}
	body := ""
	for _, f := range frames {
		body += "data: " + base64.StdEncoding.EncodeToString(f) + "\n\n"
	}

	upstream := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}

	rec := httptest.NewRecorder()
	err := a.HandleResponse(context.Background(), rc, &credential.Credential{}, upstream, rec, true)
	require.NoError(t, err)

	out := rec.Body.String()
	assert.Contains(t, out, "event: message_start")
	assert.Contains(t, out, `"text_delta"`)
	assert.Contains(t, out, "event: message_stop")
}

func TestAdaptor_HandleResponse_ClassifiesUpstreamErrorStatus(t *testing.T) {
	a := &Adaptor{Sessions: NewSessionStore()}
	rc := relaycore.NewRequestContext(&relaycore.CanonicalRequest{Messages: []relaycore.Message{}})

	upstream := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(strings.NewReader("rate limited")),
	}
	rec := httptest.NewRecorder()
	err := a.HandleResponse(context.Background(), rc, &credential.Credential{}, upstream, rec, true)
	require.Error(t, err)
}
