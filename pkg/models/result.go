package models

import "time"

// AnalysisMode selects the execution strategy for a session.
type AnalysisMode string

// Analysis modes.
const (
	ModeAgentic AnalysisMode = "agentic"
	ModeClassic AnalysisMode = "classic-fallback"
)

// OrchestratorConfig is the caller-supplied configuration for one session.
type OrchestratorConfig struct {
	Mode              AnalysisMode  `json:"mode" yaml:"mode"`
	Caps              BudgetCaps    `json:"caps" yaml:"caps"`
	ToolTimeout       time.Duration `json:"tool_timeout" yaml:"tool_timeout"`
	RetryAttempts     int           `json:"retry_attempts" yaml:"retry_attempts"`
	FallbackToClassic bool          `json:"fallback_to_classic" yaml:"fallback_to_classic"`
	ParallelExecution bool          `json:"parallel_execution" yaml:"parallel_execution"`
	CacheResults      bool          `json:"cache_results" yaml:"cache_results"`
	TelemetryEnabled  bool          `json:"telemetry_enabled" yaml:"telemetry_enabled"`
}

// DefaultOrchestratorConfig returns the documented defaults.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Mode:              ModeAgentic,
		Caps:              DefaultBudgetCaps(),
		ToolTimeout:       30 * time.Second,
		RetryAttempts:     2,
		FallbackToClassic: true,
		ParallelExecution: true,
		CacheResults:      true,
		TelemetryEnabled:  true,
	}
}

// Metrics summarizes resource consumption for a finished session.
type Metrics struct {
	TotalDuration time.Duration `json:"total_duration"`
	TotalTokens   int           `json:"total_tokens"`
	TotalCost     float64       `json:"total_cost"`
	ToolCallCount int           `json:"tool_call_count"`
	ModelSwitches int           `json:"model_switches"`
}

// OrchestratorResult is the single contractual output of a session.
// The caller always receives a well-formed result, even under total failure.
type OrchestratorResult struct {
	SessionID    string       `json:"session_id"`
	VideoID      string       `json:"video_id"`
	Success      bool         `json:"success"`
	Mode         AnalysisMode `json:"mode"`
	FallbackUsed bool         `json:"fallback_used"`
	Pattern      *Pattern     `json:"pattern,omitempty"`
	Report       *FinalReport `json:"report,omitempty"`
	Metrics      Metrics      `json:"metrics"`
	BudgetUsage  BudgetUsage  `json:"budget_usage"`
	Error        string       `json:"error,omitempty"`
}
