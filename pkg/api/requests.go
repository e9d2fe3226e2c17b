package api

import (
	"fmt"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// SubmitAnalysisRequest is the body for POST /api/v1/analyses. All fields
// except video_id are optional overrides of the server's default session
// configuration.
type SubmitAnalysisRequest struct {
	VideoID           string `json:"video_id" binding:"required"`
	Mode              string `json:"mode"`
	MaxTokens         int    `json:"max_tokens"`
	MaxToolCalls      int    `json:"max_tool_calls"`
	MaxDurationSecs   int    `json:"max_duration_seconds"`
	ParallelExecution *bool  `json:"parallel_execution"`
	CacheResults      *bool  `json:"cache_results"`
	FallbackToClassic *bool  `json:"fallback_to_classic"`
}

// sessionConfig applies the request overrides to the server defaults.
func (r SubmitAnalysisRequest) sessionConfig(defaults models.OrchestratorConfig) (models.OrchestratorConfig, error) {
	cfg := defaults

	switch models.AnalysisMode(r.Mode) {
	case "":
	case models.ModeAgentic, models.ModeClassic:
		cfg.Mode = models.AnalysisMode(r.Mode)
	default:
		return cfg, fmt.Errorf("invalid mode %q", r.Mode)
	}

	if r.MaxTokens < 0 || r.MaxToolCalls < 0 || r.MaxDurationSecs < 0 {
		return cfg, fmt.Errorf("budget overrides must be positive")
	}
	if r.MaxTokens > 0 {
		cfg.Caps.MaxTokens = min(r.MaxTokens, defaults.Caps.MaxTokens)
	}
	if r.MaxToolCalls > 0 {
		cfg.Caps.MaxToolCalls = min(r.MaxToolCalls, defaults.Caps.MaxToolCalls)
	}
	if r.MaxDurationSecs > 0 {
		d := time.Duration(r.MaxDurationSecs) * time.Second
		if d < defaults.Caps.MaxDuration {
			cfg.Caps.MaxDuration = d
		}
	}

	if r.ParallelExecution != nil {
		cfg.ParallelExecution = *r.ParallelExecution
	}
	if r.CacheResults != nil {
		cfg.CacheResults = *r.CacheResults
	}
	if r.FallbackToClassic != nil {
		cfg.FallbackToClassic = *r.FallbackToClassic
	}
	return cfg, nil
}
