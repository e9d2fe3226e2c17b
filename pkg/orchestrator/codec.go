package orchestrator

import (
	"encoding/json"
	"fmt"
)

// decodeData recovers a typed payload from a tool response's Data field.
// Handlers in-process return concrete types; payloads that crossed a codec
// boundary (cache, transport) arrive as generic JSON shapes and are decoded
// through a marshal round trip.
func decodeData[T any](data any) (*T, error) {
	switch v := data.(type) {
	case *T:
		return v, nil
	case T:
		return &v, nil
	case nil:
		return nil, fmt.Errorf("tool returned no data")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("re-encode tool data: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode tool data: %w", err)
	}
	return &out, nil
}

// toParamObject converts a struct into the generic object shape the tool
// parameter schema expects.
func toParamObject(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// toParamArray converts a slice into the generic array shape the tool
// parameter schema expects.
func toParamArray(v any) []any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
