package models

import "time"

// Tier is a cost/capability class of reasoning model backing a turn.
type Tier string

// Model tiers, ordered by capability and cost.
const (
	TierLarge  Tier = "large"
	TierMedium Tier = "medium"
	TierSmall  Tier = "small"
)

// BudgetCaps holds the hard resource limits for one analysis session.
// Immutable once the session starts.
type BudgetCaps struct {
	MaxFanouts     int           `json:"max_fanouts" yaml:"max_fanouts"`
	MaxValidations int           `json:"max_validations" yaml:"max_validations"`
	MaxCandidates  int           `json:"max_candidates" yaml:"max_candidates"`
	MaxTokens      int           `json:"max_tokens" yaml:"max_tokens"`
	MaxDuration    time.Duration `json:"max_duration" yaml:"max_duration"`
	MaxToolCalls   int           `json:"max_tool_calls" yaml:"max_tool_calls"`
}

// DefaultBudgetCaps returns the standard per-session limits.
func DefaultBudgetCaps() BudgetCaps {
	return BudgetCaps{
		MaxFanouts:     5,
		MaxValidations: 20,
		MaxCandidates:  200,
		MaxTokens:      200_000,
		MaxDuration:    180 * time.Second,
		MaxToolCalls:   100,
	}
}

// CostBreakdown attributes spend to model tiers.
type CostBreakdown struct {
	Large  float64 `json:"large"`
	Medium float64 `json:"medium"`
	Small  float64 `json:"small"`
	Total  float64 `json:"total"`
}

// BudgetUsage is the monotonically increasing consumption record for a
// session. Every field only increases; ToolCalls equals the number of
// non-skipped tool-call records.
type BudgetUsage struct {
	Fanouts     int           `json:"fanouts"`
	Validations int           `json:"validations"`
	Candidates  int           `json:"candidates"`
	Tokens      int           `json:"tokens"`
	Elapsed     time.Duration `json:"elapsed"`
	ToolCalls   int           `json:"tool_calls"`
	Costs       CostBreakdown `json:"costs"`
}

// RemainingBudget is the per-dimension headroom (cap minus usage).
type RemainingBudget struct {
	Fanouts     int           `json:"fanouts"`
	Validations int           `json:"validations"`
	Candidates  int           `json:"candidates"`
	Tokens      int           `json:"tokens"`
	Duration    time.Duration `json:"duration"`
	ToolCalls   int           `json:"tool_calls"`
}

// BudgetSummary is a human-oriented snapshot of budget pressure.
type BudgetSummary struct {
	// PercentUsed maps dimension name to percent consumed (0-100).
	PercentUsed map[string]float64 `json:"percent_used"`
	// CriticalDimensions lists dimensions at or above the critical threshold.
	CriticalDimensions []string `json:"critical_dimensions"`
	// EstimatedRemainingSpend projects the cost of the remaining token budget
	// at the blended rate observed so far.
	EstimatedRemainingSpend float64 `json:"estimated_remaining_spend"`
}

// RoutingDecision is the Model Router's output for one turn.
type RoutingDecision struct {
	Tier            Tier    `json:"tier"`
	Reason          string  `json:"reason"`
	EstimatedTokens int     `json:"estimated_tokens"`
	EstimatedCost   float64 `json:"estimated_cost"`
}

// ModelSwitch records one tier transition in a session.
type ModelSwitch struct {
	Turn       TurnType  `json:"turn"`
	FromTier   Tier      `json:"from_tier"`
	ToTier     Tier      `json:"to_tier"`
	Reason     string    `json:"reason"`
	Forced     bool      `json:"forced"`
	SwitchedAt time.Time `json:"switched_at"`
}
