package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a model response that could not be decoded into the
// expected structure. The raw content is retained for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// GenerateJSON runs a completion and decodes the response body into out.
// Models frequently wrap JSON in markdown fences; those are stripped before
// decoding. A decode failure returns a *ParseError, distinct from transport
// errors, so callers can retry with a stricter prompt or degrade.
func GenerateJSON(ctx context.Context, c Client, req Request, out any) (*Response, error) {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	body := stripFences(resp.Content)
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return resp, &ParseError{Raw: resp.Content, Err: err}
	}
	return resp, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		first := strings.TrimSpace(s[:idx])
		if len(first) <= 8 {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
