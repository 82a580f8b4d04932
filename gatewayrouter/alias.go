// Package gatewayrouter dispatches an inbound request to a (vendor,
// endpoint-family, resolved-model) tuple based on the request path and the
// client-supplied model name, per the router component design.
package gatewayrouter

import "strings"

// Vendor mirrors credential.Vendor without importing the credential package,
// so the router stays usable by anything that only needs routing decisions.
type Vendor string

const (
	VendorAnthropic Vendor = "anthropic"
	VendorVertex    Vendor = "vertex"
	VendorWarp      Vendor = "warp"
)

// alias is one canonical model's resolved id per vendor, plus which vendor a
// non-Warp request targets by default.
type alias struct {
	defaultVendor Vendor
	anthropicID   string
	vertexID      string
	warpID        string
}

// modelAliases is the per-vendor alias table. Canonical client-facing model
// names are normalised to the concrete upstream id a vendor expects.
var modelAliases = map[string]alias{
	"claude-sonnet-4.5": {
		defaultVendor: VendorAnthropic,
		anthropicID:   "claude-sonnet-4-5-20250514",
		vertexID:      "claude-sonnet-4-5@20250514",
		warpID:        "claude-4-5-sonnet",
	},
	"claude-sonnet-4-5": {
		defaultVendor: VendorAnthropic,
		anthropicID:   "claude-sonnet-4-5-20250514",
		vertexID:      "claude-sonnet-4-5@20250514",
		warpID:        "claude-4-5-sonnet",
	},
	"claude-opus-4.5": {
		defaultVendor: VendorAnthropic,
		anthropicID:   "claude-opus-4-5-20251101",
		vertexID:      "claude-opus-4-5@20251101",
		warpID:        "claude-4-5-opus",
	},
	"claude-opus-4-5": {
		defaultVendor: VendorAnthropic,
		anthropicID:   "claude-opus-4-5-20251101",
		vertexID:      "claude-opus-4-5@20251101",
		warpID:        "claude-4-5-opus",
	},
	"claude-haiku-4.5": {
		defaultVendor: VendorAnthropic,
		anthropicID:   "claude-haiku-4-5-20251001",
		vertexID:      "claude-haiku-4-5@20251001",
		warpID:        "claude-4-5-haiku",
	},
	"gemini-2.5-pro": {
		defaultVendor: VendorVertex,
		vertexID:      "gemini-2.5-pro",
		warpID:        "gemini-2.5-pro",
	},
	"gemini-2.5-flash": {
		defaultVendor: VendorVertex,
		vertexID:      "gemini-2.5-flash",
		warpID:        "gemini-2.5-flash",
	},
	"gpt-4": {
		defaultVendor: VendorWarp,
		warpID:        "gpt-4.1",
	},
	"gpt-4.1": {
		defaultVendor: VendorWarp,
		warpID:        "gpt-4.1",
	},
	"gpt-4o": {
		defaultVendor: VendorWarp,
		warpID:        "gpt-4o",
	},
}

// DefaultAnthropicModel and friends are the documented per-vendor fallback
// when the requested model has no alias table entry.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250514"
	DefaultVertexModel    = "claude-sonnet-4-5@20250514"
	DefaultWarpModel      = "claude-4-5-sonnet"
)

// warpFuzzyTokens is the fallback substring match order for Warp model
// resolution when the requested name has no exact alias entry. Order matters:
// the first matching substring wins.
var warpFuzzyTokens = []struct {
	substr string
	warpID string
}{
	{"opus", "claude-4-5-opus"},
	{"sonnet", "claude-4-5-sonnet"},
	{"haiku", "claude-4-5-haiku"},
	{"gemini", "gemini-2.5-pro"},
	{"gpt", "gpt-4.1"},
}

// ResolveAnthropic maps a canonical model name to the id the Anthropic
// upstream expects, falling back to the documented default.
func ResolveAnthropic(model string) string {
	if a, ok := modelAliases[model]; ok && a.anthropicID != "" {
		return a.anthropicID
	}
	return DefaultAnthropicModel
}

// ResolveVertex maps a canonical model name to the id the Vertex upstream
// expects, falling back to the documented default.
func ResolveVertex(model string) string {
	if a, ok := modelAliases[model]; ok && a.vertexID != "" {
		return a.vertexID
	}
	return DefaultVertexModel
}

// ResolveWarp maps a canonical model name to the id Warp expects. Unknown
// models fall back to fuzzy substring matching on opus/sonnet/haiku/gemini/gpt
// before the documented default.
func ResolveWarp(model string) string {
	if a, ok := modelAliases[model]; ok && a.warpID != "" {
		return a.warpID
	}
	lower := strings.ToLower(model)
	for _, f := range warpFuzzyTokens {
		if strings.Contains(lower, f.substr) {
			return f.warpID
		}
	}
	return DefaultWarpModel
}

// DefaultVendor returns the vendor a non-Warp request targets for model, used
// when the inbound path does not itself pin the vendor (every non-/w/ path).
// Unknown models default to Anthropic, the broadest-coverage vendor.
func DefaultVendor(model string) Vendor {
	if a, ok := modelAliases[model]; ok {
		return a.defaultVendor
	}
	return VendorAnthropic
}
