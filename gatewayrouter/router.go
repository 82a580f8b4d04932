package gatewayrouter

import (
	"strings"

	"github.com/relaygate/core/errs"
)

// Family identifies the client-facing wire schema and which endpoint family
// produced it, independent of which vendor ultimately serves the request.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyOpenAIChat
	FamilyAnthropicMessages
	FamilyGeminiGenerate
	FamilyGeminiStream
	FamilyWarpChat
	FamilyWarpMessages
	FamilyWarpMessagesProto
	FamilyWarpToolsExecute
)

// Route is the router's decision for one inbound request: which schema the
// client spoke, whether the path pins the backend to Warp, and (for Gemini
// paths, where the model is embedded in the URL) the raw model segment.
type Route struct {
	Family    Family
	ForceWarp bool
	PathModel string
}

// RouteForPath decides Family/ForceWarp/PathModel from the request path alone;
// model-based vendor resolution happens separately via Resolve.
func RouteForPath(path string) (Route, error) {
	switch {
	case path == "/v1/chat/completions":
		return Route{Family: FamilyOpenAIChat}, nil
	case path == "/v1/messages":
		return Route{Family: FamilyAnthropicMessages}, nil
	case path == "/w/v1/chat/completions":
		return Route{Family: FamilyWarpChat, ForceWarp: true}, nil
	case path == "/w/v1/messages":
		return Route{Family: FamilyWarpMessages, ForceWarp: true}, nil
	case path == "/w/v1/messages/proto":
		return Route{Family: FamilyWarpMessagesProto, ForceWarp: true}, nil
	case path == "/w/v1/tools/execute":
		return Route{Family: FamilyWarpToolsExecute, ForceWarp: true}, nil
	}

	if model, ok := geminiPathModel(path, ":generateContent"); ok {
		return Route{Family: FamilyGeminiGenerate, PathModel: model}, nil
	}
	if model, ok := geminiPathModel(path, ":streamGenerateContent"); ok {
		return Route{Family: FamilyGeminiStream, PathModel: model}, nil
	}
	if model, ok := geminiPathModel(path, ":countTokens"); ok {
		return Route{Family: FamilyGeminiGenerate, PathModel: model}, nil
	}

	return Route{}, errs.ClientError("unrecognised endpoint path: " + path)
}

const geminiPathPrefix = "/v1beta/models/"

func geminiPathModel(path, suffix string) (string, bool) {
	if !strings.HasPrefix(path, geminiPathPrefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	model := strings.TrimSuffix(strings.TrimPrefix(path, geminiPathPrefix), suffix)
	if model == "" {
		return "", false
	}
	return model, true
}

// Decision is the fully-resolved routing outcome: which vendor will serve the
// request and which model id that vendor should see.
type Decision struct {
	Route         Route
	Vendor        Vendor
	ResolvedModel string
}

// Resolve combines RouteForPath with the model alias table: path prefix wins
// for backend pinning (/w/v1/* always targets Warp); otherwise the model's
// alias-table entry (or the Anthropic default for unknown models) picks the
// vendor, per the decision rules.
func Resolve(path, requestedModel string) (Decision, error) {
	route, err := RouteForPath(path)
	if err != nil {
		return Decision{}, err
	}

	model := requestedModel
	if route.PathModel != "" {
		model = route.PathModel
	}

	vendor := VendorWarp
	if !route.ForceWarp {
		vendor = DefaultVendor(model)
	}

	var resolved string
	switch vendor {
	case VendorAnthropic:
		resolved = ResolveAnthropic(model)
	case VendorVertex:
		resolved = ResolveVertex(model)
	case VendorWarp:
		resolved = ResolveWarp(model)
	default:
		resolved = model
	}

	return Decision{Route: route, Vendor: vendor, ResolvedModel: resolved}, nil
}
