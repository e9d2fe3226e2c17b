// Package llm provides tier-keyed access to the reasoning models behind
// each turn. One configured model backs each tier; callers pick a tier,
// never a concrete model name.
package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mediapulse/patternlab/pkg/budget"
	"github.com/mediapulse/patternlab/pkg/models"
)

// Request is one reasoning-model invocation.
type Request struct {
	Tier        models.Tier
	System      string
	Prompt      string
	Temperature *float64
	MaxTokens   int
}

// Response carries the model output plus token/cost accounting.
type Response struct {
	Content      string
	Tier         models.Tier
	Model        string
	InputTokens  int
	OutputTokens int
	// Cost is the tier-priced spend for this call.
	Cost float64
}

// TotalTokens is the token count charged against the session budget.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Client generates completions for a given tier.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Config maps tiers to concrete model names on one OpenAI-compatible API.
type Config struct {
	APIKey  string                 `yaml:"api_key"`
	BaseURL string                 `yaml:"base_url"`
	Models  map[models.Tier]string `yaml:"models"`
}

// DefaultModels is the standard tier-to-model mapping.
func DefaultModels() map[models.Tier]string {
	return map[models.Tier]string{
		models.TierLarge:  "gpt-4o",
		models.TierMedium: "gpt-4o-mini",
		models.TierSmall:  "gpt-4.1-nano",
	}
}

// TieredClient routes requests to the model configured for each tier via a
// single OpenAI-compatible endpoint.
type TieredClient struct {
	client openai.Client
	models map[models.Tier]string
}

// NewTieredClient builds a client from config, filling in default models for
// unconfigured tiers.
func NewTieredClient(cfg Config) (*TieredClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	tierModels := DefaultModels()
	for tier, model := range cfg.Models {
		if model != "" {
			tierModels[tier] = model
		}
	}

	return &TieredClient{
		client: openai.NewClient(opts...),
		models: tierModels,
	}, nil
}

// Generate runs one completion on the model backing req.Tier.
func (c *TieredClient) Generate(ctx context.Context, req Request) (*Response, error) {
	model, ok := c.models[req.Tier]
	if !ok {
		return nil, fmt.Errorf("llm: no model configured for tier %q", req.Tier)
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: %s completion failed: %w", req.Tier, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("llm: %s completion returned no choices", req.Tier)
	}

	in := int(completion.Usage.PromptTokens)
	out := int(completion.Usage.CompletionTokens)
	return &Response{
		Content:      completion.Choices[0].Message.Content,
		Tier:         req.Tier,
		Model:        model,
		InputTokens:  in,
		OutputTokens: out,
		Cost:         budget.CalculateCost(req.Tier, in+out),
	}, nil
}
