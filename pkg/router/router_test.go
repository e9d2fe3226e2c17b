package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
)

func stateWithConfidence(confidence float64) *models.SessionState {
	return &models.SessionState{
		VideoID:    "vid-1",
		Hypothesis: &models.Hypothesis{Statement: "thumbnail contrast", Confidence: confidence},
	}
}

func TestRoute_TurnTypeDefaults(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	state := stateWithConfidence(0.6)
	usage := models.BudgetUsage{}

	assert.Equal(t, models.TierLarge, r.Route(models.TurnHypothesisGeneration, state, usage).Tier)
	assert.Equal(t, models.TierSmall, r.Route(models.TurnEnrichment, state, usage).Tier)
	assert.Equal(t, models.TierSmall, r.Route(models.TurnContextGathering, state, usage).Tier)
	assert.Equal(t, models.TierMedium, r.Route(models.TurnSearchPlanning, state, usage).Tier)
}

func TestRoute_ValidationConfidenceTiers(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	usage := models.BudgetUsage{}

	high := r.Route(models.TurnValidation, stateWithConfidence(0.85), usage)
	assert.Equal(t, models.TierMedium, high.Tier)
	assert.Contains(t, high.Reason, "high-confidence")

	low := r.Route(models.TurnValidation, stateWithConfidence(0.3), usage)
	assert.Equal(t, models.TierLarge, low.Tier)
	assert.Contains(t, low.Reason, "low-confidence")

	mid := r.Route(models.TurnValidation, stateWithConfidence(0.6), usage)
	assert.Equal(t, models.TierMedium, mid.Tier)
}

func TestRoute_Deterministic(t *testing.T) {
	state := stateWithConfidence(0.6)
	usage := models.BudgetUsage{Tokens: 1000}

	a := New(models.DefaultBudgetCaps()).Route(models.TurnValidation, state, usage)
	b := New(models.DefaultBudgetCaps()).Route(models.TurnValidation, state, usage)
	assert.Equal(t, a, b)
}

func TestRoute_BudgetPressureDowngrade(t *testing.T) {
	caps := models.DefaultBudgetCaps()
	r := New(caps)
	usage := models.BudgetUsage{Tokens: caps.MaxTokens * 85 / 100}

	for _, turn := range []models.TurnType{
		models.TurnHypothesisGeneration,
		models.TurnValidation,
		models.TurnSearchPlanning,
	} {
		d := r.Route(turn, stateWithConfidence(0.3), usage)
		assert.Equal(t, models.TierSmall, d.Tier, "turn %s", turn)
		assert.Contains(t, d.Reason, "budget constraint")
	}
}

func TestRoute_StateSizeUpgrade(t *testing.T) {
	r := New(models.DefaultBudgetCaps())

	// Inflate session state well past the upgrade threshold.
	state := stateWithConfidence(0.9)
	for i := 0; i < 400; i++ {
		state.ToolCalls = append(state.ToolCalls, models.ToolCallRecord{
			ID:       "call",
			ToolName: "semantic-search-similar",
			Params:   map[string]any{"query": strings.Repeat("x", 64)},
			Status:   models.ToolCallSuccess,
		})
	}

	d := r.Route(models.TurnEnrichment, state, models.BudgetUsage{})
	assert.NotEqual(t, models.TierSmall, d.Tier)
	assert.Contains(t, d.Reason, "state size")
}

func TestRoute_SwitchAccounting(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	state := stateWithConfidence(0.6)
	usage := models.BudgetUsage{}

	// large -> small -> medium: three turns, three transitions (first from
	// the zero tier counts as a switch).
	r.Route(models.TurnHypothesisGeneration, state, usage)
	r.Route(models.TurnEnrichment, state, usage)
	r.Route(models.TurnValidation, state, usage)

	require.Equal(t, 3, r.SwitchCount())
	hist := r.History()
	assert.Equal(t, models.TierLarge, hist[0].ToTier)
	assert.Equal(t, models.TierSmall, hist[1].ToTier)
	assert.Equal(t, models.TierMedium, hist[2].ToTier)
	assert.Equal(t, models.TurnHypothesisGeneration, hist[0].Turn)
}

func TestRoute_NoSwitchOnSameTier(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	state := stateWithConfidence(0.6)
	usage := models.BudgetUsage{}

	r.Route(models.TurnEnrichment, state, usage)
	r.Route(models.TurnContextGathering, state, usage)
	assert.Equal(t, 1, r.SwitchCount())
}

func TestForceTier_OverrideWins(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	state := stateWithConfidence(0.6)

	r.ForceTier(models.TierSmall)
	d := r.Route(models.TurnHypothesisGeneration, state, models.BudgetUsage{})
	assert.Equal(t, models.TierSmall, d.Tier)
	assert.Contains(t, d.Reason, "manual override")

	hist := r.History()
	require.NotEmpty(t, hist)
	assert.True(t, hist[0].Forced)

	r.ClearOverride()
	d = r.Route(models.TurnHypothesisGeneration, state, models.BudgetUsage{})
	assert.Equal(t, models.TierLarge, d.Tier)
}

func TestForceTier_BudgetPressureStillDowngrades(t *testing.T) {
	caps := models.DefaultBudgetCaps()
	r := New(caps)
	r.ForceTier(models.TierLarge)

	usage := models.BudgetUsage{Tokens: caps.MaxTokens * 9 / 10}
	d := r.Route(models.TurnValidation, stateWithConfidence(0.6), usage)
	assert.Equal(t, models.TierSmall, d.Tier)
	assert.Contains(t, d.Reason, "budget constraint")
}

func TestRoutingStats(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	state := stateWithConfidence(0.6)
	usage := models.BudgetUsage{}

	r.Route(models.TurnEnrichment, state, usage)
	r.Route(models.TurnEnrichment, state, usage)
	r.Route(models.TurnHypothesisGeneration, state, usage)

	stats := r.RoutingStats()
	assert.Equal(t, 2, stats.TierCounts[models.TierSmall])
	assert.Equal(t, 1, stats.TierCounts[models.TierLarge])
	assert.Equal(t, 2, stats.TurnTiers[models.TurnEnrichment][models.TierSmall])
}

func TestReset(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	r.Route(models.TurnEnrichment, stateWithConfidence(0.5), models.BudgetUsage{})
	require.NotZero(t, r.SwitchCount())

	r.Reset()
	assert.Zero(t, r.SwitchCount())
	assert.Empty(t, r.RoutingStats().TierCounts)
}

func TestCanHandle(t *testing.T) {
	assert.True(t, CanHandle(models.TierLarge, CapabilityHypothesize))
	assert.True(t, CanHandle(models.TierMedium, CapabilityCompactState))
	assert.False(t, CanHandle(models.TierSmall, CapabilityHypothesize))
	assert.True(t, CanHandle(models.TierSmall, CapabilitySummarize))
	assert.False(t, CanHandle(models.TierLarge, Capability("unknown")))
}

func TestOptimalTierForParallelTools(t *testing.T) {
	assert.Equal(t, models.TierSmall, OptimalTierForParallelTools(1))
	assert.Equal(t, models.TierSmall, OptimalTierForParallelTools(2))
	assert.Equal(t, models.TierMedium, OptimalTierForParallelTools(4))
	assert.Equal(t, models.TierLarge, OptimalTierForParallelTools(8))
}

func TestRoute_EstimatedTokensScaleWithState(t *testing.T) {
	r := New(models.DefaultBudgetCaps())
	small := r.Route(models.TurnValidation, stateWithConfidence(0.6), models.BudgetUsage{})

	big := stateWithConfidence(0.6)
	for i := 0; i < 100; i++ {
		big.ToolCalls = append(big.ToolCalls, models.ToolCallRecord{ID: "x", ToolName: "semantic-search-similar"})
	}
	large := r.Route(models.TurnValidation, big, models.BudgetUsage{})
	assert.Greater(t, large.EstimatedTokens, small.EstimatedTokens)
	assert.Greater(t, large.EstimatedCost, 0.0)
}
