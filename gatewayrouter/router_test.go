package gatewayrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ModelAliasResolution(t *testing.T) {
	anthropic, err := Resolve("/v1/messages", "claude-sonnet-4.5")
	require.NoError(t, err)
	assert.Equal(t, VendorAnthropic, anthropic.Vendor)
	assert.Equal(t, "claude-sonnet-4-5-20250514", anthropic.ResolvedModel)

	warp, err := Resolve("/w/v1/messages", "claude-sonnet-4.5")
	require.NoError(t, err)
	assert.Equal(t, VendorWarp, warp.Vendor)
	assert.Equal(t, "claude-4-5-sonnet", warp.ResolvedModel)
}

func TestResolve_WarpPathAlwaysForcesWarpRegardlessOfModel(t *testing.T) {
	d, err := Resolve("/w/v1/chat/completions", "gemini-2.5-pro")
	require.NoError(t, err)
	assert.Equal(t, VendorWarp, d.Vendor)
	assert.Equal(t, "gemini-2.5-pro", d.ResolvedModel)
}

func TestResolve_VertexDefaultVendorForGeminiModels(t *testing.T) {
	d, err := Resolve("/v1/chat/completions", "gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, VendorVertex, d.Vendor)
	assert.Equal(t, "gemini-2.5-flash", d.ResolvedModel)
}

func TestResolve_GeminiPathEmbedsModelInURL(t *testing.T) {
	d, err := Resolve("/v1beta/models/gemini-2.5-pro:streamGenerateContent", "ignored")
	require.NoError(t, err)
	assert.Equal(t, FamilyGeminiStream, d.Route.Family)
	assert.Equal(t, "gemini-2.5-pro", d.Route.PathModel)
}

func TestResolve_UnknownModelFallsBackToVendorDefault(t *testing.T) {
	d, err := Resolve("/v1/messages", "some-future-model")
	require.NoError(t, err)
	assert.Equal(t, VendorAnthropic, d.Vendor)
	assert.Equal(t, DefaultAnthropicModel, d.ResolvedModel)
}

func TestResolveWarp_FuzzyMatchesOnSubstring(t *testing.T) {
	assert.Equal(t, "claude-4-5-opus", ResolveWarp("some-custom-opus-variant"))
	assert.Equal(t, "claude-4-5-haiku", ResolveWarp("HAIKU-preview"))
	assert.Equal(t, "gemini-2.5-pro", ResolveWarp("gemini-nano-experimental"))
	assert.Equal(t, "gpt-4.1", ResolveWarp("gpt-5-preview"))
	assert.Equal(t, DefaultWarpModel, ResolveWarp("totally-unknown-llm"))
}

func TestRouteForPath_RejectsUnrecognisedPath(t *testing.T) {
	_, err := RouteForPath("/v1/unsupported")
	assert.Error(t, err)
}

func TestRouteForPath_ToolsExecuteForcesWarp(t *testing.T) {
	r, err := RouteForPath("/w/v1/tools/execute")
	require.NoError(t, err)
	assert.True(t, r.ForceWarp)
	assert.Equal(t, FamilyWarpToolsExecute, r.Family)
}
