// Package config loads and validates the service configuration from YAML,
// with environment variable expansion and defaults merging.
package config

import (
	"os"
	"time"

	"github.com/mediapulse/patternlab/pkg/llm"
	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/queue"
	"github.com/mediapulse/patternlab/pkg/store"
)

// Config is the fully resolved service configuration.
type Config struct {
	Server       ServerConfig              `yaml:"server"`
	Database     store.Config              `yaml:"database"`
	LLM          LLMConfig                 `yaml:"llm"`
	Slack        SlackConfig               `yaml:"slack"`
	Queue        queue.Config              `yaml:"queue"`
	Orchestrator models.OrchestratorConfig `yaml:"orchestrator"`
	Retention    RetentionConfig           `yaml:"retention"`
	DashboardURL string                    `yaml:"dashboard_url"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// LLMConfig holds language model provider settings. The API key is read
// from the environment, never from YAML.
type LLMConfig struct {
	APIKeyEnv string                 `yaml:"api_key_env"`
	BaseURL   string                 `yaml:"base_url"`
	Models    map[models.Tier]string `yaml:"models"`
}

// ClientConfig resolves the provider settings into an llm client config.
func (c LLMConfig) ClientConfig() llm.Config {
	return llm.Config{
		APIKey:  os.Getenv(c.APIKeyEnv),
		BaseURL: c.BaseURL,
		Models:  c.Models,
	}
}

// SlackConfig holds Slack notification settings. The bot token is read
// from the environment, never from YAML.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}

// Token returns the bot token, or empty when notifications are disabled.
func (c SlackConfig) Token() string {
	if !c.Enabled {
		return ""
	}
	return os.Getenv(c.TokenEnv)
}

// RetentionConfig controls the persisted-event retention sweeper.
type RetentionConfig struct {
	EventTTL        time.Duration `yaml:"event_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Default returns the full default configuration. User YAML is merged on
// top of this.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Database: store.Config{
			Host:            "localhost",
			Port:            5432,
			User:            "patternlab",
			Database:        "patternlab",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		LLM: LLMConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			Models:    llm.DefaultModels(),
		},
		Slack: SlackConfig{
			Enabled:  false,
			TokenEnv: "SLACK_BOT_TOKEN",
		},
		Queue:        queue.DefaultConfig(),
		Orchestrator: models.DefaultOrchestratorConfig(),
		Retention: RetentionConfig{
			EventTTL:        24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		DashboardURL: "http://localhost:5173",
	}
}
