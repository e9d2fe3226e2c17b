package tool

import (
	"fmt"
	"strings"
)

// ParamType is the JSON type expected for a tool parameter.
type ParamType string

// Parameter types.
const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// ParamSpec declares one parameter in a tool's schema.
type ParamSpec struct {
	Name     string
	Type     ParamType
	Required bool
}

// validateParams checks raw params against the schema: required parameters
// must be present, types must match, and unknown parameters are rejected so
// shape errors surface at the registry boundary instead of inside handlers.
func validateParams(specs []ParamSpec, params map[string]any) error {
	known := make(map[string]ParamSpec, len(specs))
	for _, spec := range specs {
		known[spec.Name] = spec
		if _, ok := params[spec.Name]; !ok && spec.Required {
			return fmt.Errorf("missing required parameter %q", spec.Name)
		}
	}

	var problems []string
	for name, value := range params {
		spec, ok := known[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown parameter %q", name))
			continue
		}
		if value == nil {
			continue
		}
		if !matchesType(spec.Type, value) {
			problems = append(problems, fmt.Sprintf("parameter %q: expected %s, got %T", name, spec.Type, value))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

func matchesType(t ParamType, value any) bool {
	switch t {
	case ParamString:
		_, ok := value.(string)
		return ok
	case ParamBoolean:
		_, ok := value.(bool)
		return ok
	case ParamNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case ParamInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON decoding yields float64 for all numbers.
			return v == float64(int64(v))
		}
		return false
	case ParamArray:
		_, ok := value.([]any)
		return ok
	case ParamObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return false
	}
}
