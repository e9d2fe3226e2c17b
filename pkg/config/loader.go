package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the expected YAML file name inside the config directory.
const ConfigFileName = "patternlab.yaml"

// Initialize loads, merges, validates, and returns ready-to-use
// configuration. This is the primary entry point.
//
// Steps performed:
//  1. Load patternlab.yaml from configDir (optional; defaults apply)
//  2. Expand environment variables
//  3. Merge user YAML over built-in defaults
//  4. Validate the resolved configuration
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"server_port", cfg.Server.Port,
		"workers", cfg.Queue.WorkerCount,
		"slack_enabled", cfg.Slack.Enabled)
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	user, err := loadYAML(filepath.Join(configDir, ConfigFileName))
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	// Merge user config over defaults; non-zero user values win.
	cfg := Default()
	if user != nil {
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}
	return cfg, nil
}

// loadYAML reads and parses the config file. A missing file is not an
// error: the defaults stand alone.
func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No configuration file found, using defaults", "path", path)
			return nil, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}
