// Package router chooses which reasoning-model tier handles each turn.
// Decisions are deterministic given (turn type, session state, budget usage)
// barring an explicit override, and every tier change is recorded in a
// switch history for audit.
package router

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mediapulse/patternlab/pkg/budget"
	"github.com/mediapulse/patternlab/pkg/models"
)

const (
	// pressureThreshold is the fraction of the token or cost cap past which
	// every turn is forced onto the smallest tier.
	pressureThreshold = 0.80

	// stateSizeUpgradeBytes is the serialized-state size past which a turn
	// is upgraded away from the smallest tier.
	stateSizeUpgradeBytes = 16 * 1024

	// Confidence thresholds for validation-turn tier selection.
	highConfidence = 0.80
	lowConfidence  = 0.50

	// charsPerToken is the serialization-size-to-token heuristic used for
	// the per-turn token estimate.
	charsPerToken = 4
)

// Base token estimates per turn type. Reasoning-heavy turns cost more.
var baseTokens = map[models.TurnType]int{
	models.TurnContextGathering:     800,
	models.TurnHypothesisGeneration: 3000,
	models.TurnSearchPlanning:       1500,
	models.TurnEnrichment:           600,
	models.TurnValidation:           2500,
	models.TurnFinalization:         2000,
}

// Router selects a model tier per turn and keeps switch accounting.
type Router struct {
	mu       sync.Mutex
	caps     models.BudgetCaps
	maxCost  float64
	history  []models.ModelSwitch
	lastTier models.Tier
	override models.Tier

	tierCounts map[models.Tier]int
	turnTiers  map[models.TurnType]map[models.Tier]int
}

// New creates a router for a session with the given caps. The cost-pressure
// ceiling is the price of the full token budget at the large-tier rate.
func New(caps models.BudgetCaps) *Router {
	return &Router{
		caps:       caps,
		maxCost:    budget.CalculateCost(models.TierLarge, caps.MaxTokens),
		tierCounts: make(map[models.Tier]int),
		turnTiers:  make(map[models.TurnType]map[models.Tier]int),
	}
}

// Route picks the tier for one turn.
//
// Selection order:
//  1. per-turn-type default (validation turns keyed on hypothesis confidence),
//     replaced by a manual override when one is set;
//  2. budget-pressure downgrade to the smallest tier at >=80% of the token
//     or cost cap — this outranks the override, budget safety is absolute;
//  3. state-size upgrade away from the smallest tier for oversized state.
func (r *Router) Route(turn models.TurnType, state *models.SessionState, usage models.BudgetUsage) models.RoutingDecision {
	r.mu.Lock()
	defer r.mu.Unlock()

	tier, reason := r.defaultTier(turn, state)
	forced := false
	if r.override != "" {
		tier, reason = r.override, "manual override"
		forced = true
	}

	if r.underPressure(usage) {
		tier = models.TierSmall
		reason = fmt.Sprintf("budget constraint: %.0f%% of token/cost cap consumed, forcing smallest tier",
			r.pressurePercent(usage))
	}

	stateSize := estimateStateSize(state)
	if tier == models.TierSmall && stateSize > stateSizeUpgradeBytes {
		tier = models.TierMedium
		reason = fmt.Sprintf("state size: %d bytes exceeds %d, upgrading from smallest tier",
			stateSize, stateSizeUpgradeBytes)
	}

	estTokens := baseTokens[turn] + stateSize/charsPerToken
	decision := models.RoutingDecision{
		Tier:            tier,
		Reason:          reason,
		EstimatedTokens: estTokens,
		EstimatedCost:   budget.CalculateCost(tier, estTokens),
	}

	if tier != r.lastTier || forced {
		r.history = append(r.history, models.ModelSwitch{
			Turn:       turn,
			FromTier:   r.lastTier,
			ToTier:     tier,
			Reason:     reason,
			Forced:     forced,
			SwitchedAt: time.Now(),
		})
	}
	r.lastTier = tier
	r.tierCounts[tier]++
	if r.turnTiers[turn] == nil {
		r.turnTiers[turn] = make(map[models.Tier]int)
	}
	r.turnTiers[turn][tier]++

	return decision
}

// defaultTier applies the per-turn-type baseline (step 1).
func (r *Router) defaultTier(turn models.TurnType, state *models.SessionState) (models.Tier, string) {
	switch turn {
	case models.TurnHypothesisGeneration:
		return models.TierLarge, "hypothesis generation defaults to largest tier"
	case models.TurnContextGathering, models.TurnEnrichment:
		return models.TierSmall, "simple lookup defaults to smallest tier"
	case models.TurnValidation:
		confidence := 0.0
		if state != nil && state.Hypothesis != nil {
			confidence = state.Hypothesis.Confidence
		}
		switch {
		case confidence >= highConfidence:
			return models.TierMedium, "high-confidence shortcut"
		case confidence < lowConfidence:
			return models.TierLarge, "low-confidence needs scrutiny"
		default:
			return models.TierMedium, "validation defaults to medium tier"
		}
	default:
		return models.TierMedium, fmt.Sprintf("%s defaults to medium tier", turn)
	}
}

func (r *Router) underPressure(usage models.BudgetUsage) bool {
	if r.caps.MaxTokens > 0 && float64(usage.Tokens) >= pressureThreshold*float64(r.caps.MaxTokens) {
		return true
	}
	return r.maxCost > 0 && usage.Costs.Total >= pressureThreshold*r.maxCost
}

func (r *Router) pressurePercent(usage models.BudgetUsage) float64 {
	tokenPct := 0.0
	if r.caps.MaxTokens > 0 {
		tokenPct = float64(usage.Tokens) / float64(r.caps.MaxTokens) * 100
	}
	costPct := 0.0
	if r.maxCost > 0 {
		costPct = usage.Costs.Total / r.maxCost * 100
	}
	if costPct > tokenPct {
		return costPct
	}
	return tokenPct
}

// ForceTier sets a manual override that subsequent Route calls honor (see
// Route for the budget-safety exception) and records the transition in the
// switch history with Forced set.
func (r *Router) ForceTier(tier models.Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.override = tier
	r.history = append(r.history, models.ModelSwitch{
		FromTier:   r.lastTier,
		ToTier:     tier,
		Reason:     "manual override",
		Forced:     true,
		SwitchedAt: time.Now(),
	})
	r.lastTier = tier
}

// ClearOverride removes a manual override.
func (r *Router) ClearOverride() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.override = ""
}

// History returns the switch history in turn order.
func (r *Router) History() []models.ModelSwitch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ModelSwitch, len(r.history))
	copy(out, r.history)
	return out
}

// SwitchCount returns the number of recorded tier transitions.
func (r *Router) SwitchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// Reset clears history, override, and accounting. Caps are retained.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
	r.lastTier = ""
	r.override = ""
	r.tierCounts = make(map[models.Tier]int)
	r.turnTiers = make(map[models.TurnType]map[models.Tier]int)
}

// Stats summarizes routing activity.
type Stats struct {
	TierCounts map[models.Tier]int                     `json:"tier_counts"`
	TurnTiers  map[models.TurnType]map[models.Tier]int `json:"turn_tiers"`
}

// RoutingStats returns per-tier usage counts and the turn-to-tier distribution.
func (r *Router) RoutingStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	tiers := make(map[models.Tier]int, len(r.tierCounts))
	for k, v := range r.tierCounts {
		tiers[k] = v
	}
	turns := make(map[models.TurnType]map[models.Tier]int, len(r.turnTiers))
	for turn, dist := range r.turnTiers {
		copied := make(map[models.Tier]int, len(dist))
		for tier, n := range dist {
			copied[tier] = n
		}
		turns[turn] = copied
	}
	return Stats{TierCounts: tiers, TurnTiers: turns}
}

// OptimalTierForParallelTools picks the tier for coordinating a fan-out:
// more concurrent calls need more reasoning headroom to join coherently.
func OptimalTierForParallelTools(toolCount int) models.Tier {
	switch {
	case toolCount <= 2:
		return models.TierSmall
	case toolCount <= 5:
		return models.TierMedium
	default:
		return models.TierLarge
	}
}

// estimateStateSize approximates the serialized size of the session state
// portions relevant to prompting. JSON length is the same measure the
// provider payload would have.
func estimateStateSize(state *models.SessionState) int {
	if state == nil {
		return 0
	}
	data, err := json.Marshal(state)
	if err != nil {
		return 0
	}
	return len(data)
}
