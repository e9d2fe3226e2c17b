package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
)

func TestGenerateJSON_Plain(t *testing.T) {
	mock := NewMockClient(`{"statement":"spikes correlate with topic","confidence":0.7}`)

	var out models.Hypothesis
	resp, err := GenerateJSON(context.Background(), mock, Request{Tier: models.TierMedium, Prompt: "hypothesize"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "spikes correlate with topic", out.Statement)
	assert.InDelta(t, 0.7, out.Confidence, 1e-9)
	assert.Equal(t, models.TierMedium, resp.Tier)
	assert.Equal(t, 100, resp.TotalTokens())
}

func TestGenerateJSON_StripsMarkdownFences(t *testing.T) {
	mock := NewMockClient("```json\n{\"statement\":\"fenced\",\"confidence\":0.5}\n```")

	var out models.Hypothesis
	_, err := GenerateJSON(context.Background(), mock, Request{Tier: models.TierSmall}, &out)
	require.NoError(t, err)
	assert.Equal(t, "fenced", out.Statement)
}

func TestGenerateJSON_ParseFailure(t *testing.T) {
	mock := NewMockClient("I could not produce JSON, sorry.")

	var out models.Hypothesis
	resp, err := GenerateJSON(context.Background(), mock, Request{Tier: models.TierSmall}, &out)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Raw, "could not produce")
	// The response is still returned so tokens can be charged.
	require.NotNil(t, resp)
	assert.Equal(t, 100, resp.TotalTokens())
}

func TestGenerateJSON_TransportError(t *testing.T) {
	mock := NewMockClient()
	mock.Err = errors.New("connection refused")

	var out models.Hypothesis
	_, err := GenerateJSON(context.Background(), mock, Request{Tier: models.TierLarge}, &out)
	require.Error(t, err)

	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                      "{\"a\":1}",
		"```json\n{\"a\":1}\n```":        "{\"a\":1}",
		"```\n{\"a\":1}\n```":            "{\"a\":1}",
		"  ```JSON\n{\"a\":1}\n```  ":    "{\"a\":1}",
		"```json\n{\n  \"a\": 1\n}\n```": "{\n  \"a\": 1\n}",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripFences(in), "input %q", in)
	}
}
