package config

import (
	"fmt"

	"github.com/mediapulse/patternlab/pkg/models"
)

// validate checks the resolved configuration for values that would fail at
// runtime. Database credentials are deliberately not validated here: tests
// and tools run without a database.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return NewValidationError("server", "port",
			fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Server.Port))
	}

	if cfg.LLM.APIKeyEnv == "" {
		return NewValidationError("llm", "api_key_env", ErrMissingRequiredField)
	}
	for _, tier := range []models.Tier{models.TierLarge, models.TierMedium, models.TierSmall} {
		if cfg.LLM.Models[tier] == "" {
			return NewValidationError("llm", "models",
				fmt.Errorf("%w: no model for tier %q", ErrMissingRequiredField, tier))
		}
	}

	if cfg.Slack.Enabled && cfg.Slack.Channel == "" {
		return NewValidationError("slack", "channel", ErrMissingRequiredField)
	}

	if cfg.Queue.WorkerCount <= 0 {
		return NewValidationError("queue", "worker_count",
			fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Queue.WorkerCount))
	}
	if cfg.Queue.QueueCapacity <= 0 {
		return NewValidationError("queue", "queue_capacity",
			fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Queue.QueueCapacity))
	}
	if cfg.Queue.SessionTimeout <= 0 {
		return NewValidationError("queue", "session_timeout",
			fmt.Errorf("%w: %v", ErrInvalidValue, cfg.Queue.SessionTimeout))
	}

	caps := cfg.Orchestrator.Caps
	if caps.MaxTokens <= 0 || caps.MaxToolCalls <= 0 || caps.MaxDuration <= 0 {
		return NewValidationError("orchestrator", "caps",
			fmt.Errorf("%w: budget caps must be positive", ErrInvalidValue))
	}
	if cfg.Queue.SessionTimeout < caps.MaxDuration {
		return NewValidationError("queue", "session_timeout",
			fmt.Errorf("%w: must be at least the session budget duration %v",
				ErrInvalidValue, caps.MaxDuration))
	}

	if cfg.Retention.EventTTL <= 0 || cfg.Retention.CleanupInterval <= 0 {
		return NewValidationError("retention", "",
			fmt.Errorf("%w: ttl and interval must be positive", ErrInvalidValue))
	}

	return nil
}
