package vertex

import "encoding/json"

// vertexIncompatibleFields are JSON-schema keys Vertex rejects on tool
// input_schema objects; they are stripped recursively before the request
// is sent upstream.
var vertexIncompatibleFields = map[string]bool{
	"$comment":       true,
	"input_examples": true,
}

// CleanJSONSchemaForVertex recursively strips Vertex-incompatible fields from
// a tool's input_schema, returning a new document (the input is not mutated).
func CleanJSONSchemaForVertex(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 {
		return schema
	}
	var decoded any
	if err := json.Unmarshal(schema, &decoded); err != nil {
		return schema
	}
	cleaned := cleanValue(decoded)
	out, err := json.Marshal(cleaned)
	if err != nil {
		return schema
	}
	return out
}

func cleanValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if vertexIncompatibleFields[k] {
				continue
			}
			out[k] = cleanValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cleanValue(val)
		}
		return out
	default:
		return v
	}
}
