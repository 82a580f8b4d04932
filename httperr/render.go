// Package httperr renders errs.Error values into the client-facing schema's
// native error envelope, for both non-streaming responses and SSE error events.
package httperr

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaygate/core/errs"
)

// Schema identifies which client-facing error envelope shape to use.
type Schema int

const (
	// SchemaOpenAI renders {"error":{"message","type","code"}}.
	SchemaOpenAI Schema = iota
	// SchemaAnthropic renders {"type":"error","error":{"type","message"}}.
	SchemaAnthropic
	// SchemaGemini renders {"error":{"code","message","status"}}.
	SchemaGemini
)

// StatusFor maps an error kind to the HTTP status code it should surface as,
// per the taxonomy in the error-handling design.
func StatusFor(e *errs.Error) int {
	switch e.Kind {
	case errs.KindClientError:
		return http.StatusBadRequest
	case errs.KindAuthError:
		return http.StatusUnauthorized
	case errs.KindNoCredentialAvailable:
		return http.StatusServiceUnavailable
	case errs.KindUpstreamTransient:
		return http.StatusBadGateway
	case errs.KindUpstreamPermanent:
		if e.Status != 0 {
			return e.Status
		}
		return http.StatusBadGateway
	case errs.KindTokenRefreshFailed:
		return http.StatusBadGateway
	case errs.KindProtocolError:
		return http.StatusBadGateway
	case errs.KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func anthropicErrorType(e *errs.Error) string {
	switch e.Kind {
	case errs.KindClientError:
		return "invalid_request_error"
	case errs.KindAuthError:
		return "authentication_error"
	case errs.KindNoCredentialAvailable:
		return "overloaded_error"
	case errs.KindUpstreamTransient:
		return "api_error"
	case errs.KindUpstreamPermanent:
		return "invalid_request_error"
	case errs.KindTokenRefreshFailed:
		return "authentication_error"
	case errs.KindProtocolError:
		return "api_error"
	default:
		return "api_error"
	}
}

// Body renders the JSON body for a non-streaming error response in the given schema.
func Body(schema Schema, e *errs.Error) gin.H {
	switch schema {
	case SchemaAnthropic:
		return gin.H{
			"type": "error",
			"error": gin.H{
				"type":    anthropicErrorType(e),
				"message": e.Message,
			},
		}
	case SchemaGemini:
		return gin.H{
			"error": gin.H{
				"code":    StatusFor(e),
				"message": e.Message,
				"status":  e.Kind.String(),
			},
		}
	default: // SchemaOpenAI
		return gin.H{
			"error": gin.H{
				"message": e.Message,
				"type":    "invalid_request_error",
				"code":    e.Kind.String(),
			},
		}
	}
}

// WriteJSON writes the schema-appropriate non-streaming error response.
func WriteJSON(c *gin.Context, schema Schema, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Wrap(errs.KindUpstreamTransient, err, "unexpected error")
	}
	c.JSON(StatusFor(e), Body(schema, e))
}

// SSEEvent renders the provider-native SSE error event payload: for Anthropic
// this is "event: error\ndata: ...\n\n"; for OpenAI-shaped endpoints it's a bare
// "data: {...}\n\n" frame, matching the canonical engine's single "error" event.
func SSEEvent(schema Schema, err error) (event string, data []byte) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Wrap(errs.KindUpstreamTransient, err, "unexpected error")
	}
	body := Body(schema, e)
	return "error", marshalOrFallback(body, e)
}

func marshalOrFallback(body gin.H, e *errs.Error) []byte {
	data, err := jsonMarshal(body)
	if err != nil {
		return []byte(fmt.Sprintf(`{"type":"error","error":{"type":"api_error","message":%q}}`, e.Message))
	}
	return data
}
