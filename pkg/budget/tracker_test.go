package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
)

func testCaps() models.BudgetCaps {
	return models.BudgetCaps{
		MaxFanouts:     2,
		MaxValidations: 10,
		MaxCandidates:  50,
		MaxTokens:      10_000,
		MaxDuration:    time.Minute,
		MaxToolCalls:   5,
	}
}

func TestTracker_Additivity(t *testing.T) {
	tr := NewTracker(testCaps())

	tr.RecordToolCall("semantic-search-similar", 100, 0.01)
	tr.RecordToolCall("validate-pattern-statistical", 200, 0.02)
	tr.RecordToolCall("comprehensive-performance-analysis", 300, 0.03)

	require.True(t, tr.RecordValidation(5))
	require.True(t, tr.RecordValidation(7))
	require.True(t, tr.RecordFanout())

	u := tr.Usage()
	assert.Equal(t, 3, u.ToolCalls)
	assert.Equal(t, 600, u.Tokens)
	assert.Equal(t, 2, u.Validations)
	assert.Equal(t, 12, u.Candidates)
	assert.Equal(t, 1, u.Fanouts)
	assert.InDelta(t, 0.06, u.Costs.Total, 1e-9)
	assert.InDelta(t, 0.01, u.Costs.Small, 1e-9)
	assert.InDelta(t, 0.02, u.Costs.Medium, 1e-9)
	assert.InDelta(t, 0.03, u.Costs.Large, 1e-9)
}

func TestTracker_RecordModelUsage(t *testing.T) {
	tr := NewTracker(testCaps())

	tr.RecordModelUsage(models.TierLarge, 2_000, 0.03)
	tr.RecordModelUsage(models.TierSmall, 500, 0.00025)

	u := tr.Usage()
	// Model calls consume tokens and cost but are not tool dispatches.
	assert.Zero(t, u.ToolCalls)
	assert.Equal(t, 2_500, u.Tokens)
	assert.InDelta(t, 0.03, u.Costs.Large, 1e-9)
	assert.InDelta(t, 0.00025, u.Costs.Small, 1e-9)
	assert.InDelta(t, 0.03025, u.Costs.Total, 1e-9)
}

func TestTracker_FanoutExhaustion(t *testing.T) {
	tr := NewTracker(testCaps())

	require.True(t, tr.RecordFanout())
	require.True(t, tr.RecordFanout())
	require.False(t, tr.RecordFanout())

	// Search tools are blocked once the fanout dimension is exhausted,
	// but unrelated tools still pass admission.
	assert.False(t, tr.CanExecute("semantic-search-similar", 0))
	assert.True(t, tr.CanExecute("enrich-topic-metadata", 0))
}

func TestTracker_ValidationCap(t *testing.T) {
	caps := testCaps()
	caps.MaxCandidates = 200
	tr := NewTracker(caps)

	for i := 0; i < 10; i++ {
		require.True(t, tr.RecordValidation(5), "validation %d should be admitted", i)
	}
	assert.False(t, tr.RecordValidation(5))
	assert.Equal(t, 10, tr.Usage().Validations)
	assert.Equal(t, 50, tr.Usage().Candidates)
}

func TestTracker_CandidateCapRejectsBatch(t *testing.T) {
	tr := NewTracker(testCaps())

	require.True(t, tr.RecordValidation(45))
	// Validation count has headroom but the batch would exceed the
	// candidate cap — rejected without mutation.
	assert.False(t, tr.RecordValidation(10))

	u := tr.Usage()
	assert.Equal(t, 1, u.Validations)
	assert.Equal(t, 45, u.Candidates)
}

func TestTracker_CanExecuteToolCallCap(t *testing.T) {
	caps := testCaps()
	caps.MaxToolCalls = 1
	tr := NewTracker(caps)

	assert.True(t, tr.CanExecute("get-video-context", 0))
	tr.RecordToolCall("get-video-context", 50, 0.001)
	assert.False(t, tr.CanExecute("get-video-context", 0))
}

func TestTracker_CanExecuteTokenHeadroom(t *testing.T) {
	tr := NewTracker(testCaps())
	tr.RecordToolCall("get-video-context", 9_500, 0.01)

	assert.False(t, tr.CanExecute("get-video-context", 600))
	assert.True(t, tr.CanExecute("get-video-context", 400))
}

func TestTracker_IsExceeded(t *testing.T) {
	tr := NewTracker(testCaps())
	assert.False(t, tr.IsExceeded())

	tr.RecordToolCall("a", 10_000, 0.1)
	assert.True(t, tr.IsExceeded())
}

func TestTracker_InitializeResetsUsage(t *testing.T) {
	tr := NewTracker(testCaps())
	tr.RecordToolCall("a", 100, 0.01)
	require.NotZero(t, tr.Usage().ToolCalls)

	tr.Initialize(testCaps())
	assert.Zero(t, tr.Usage().ToolCalls)
	assert.Zero(t, tr.Usage().Tokens)
	assert.Zero(t, tr.Usage().Costs.Total)
}

func TestTracker_Remaining(t *testing.T) {
	tr := NewTracker(testCaps())
	tr.RecordToolCall("a", 4_000, 0.01)
	require.True(t, tr.RecordFanout())

	r := tr.Remaining()
	assert.Equal(t, 1, r.Fanouts)
	assert.Equal(t, 6_000, r.Tokens)
	assert.Equal(t, 4, r.ToolCalls)
}

func TestTracker_SummaryCriticalDimensions(t *testing.T) {
	tr := NewTracker(testCaps())
	tr.RecordToolCall("a", 9_500, 0.05)

	s := tr.Summary()
	assert.Contains(t, s.CriticalDimensions, "tokens")
	assert.NotContains(t, s.CriticalDimensions, "fanouts")
	assert.InDelta(t, 95.0, s.PercentUsed["tokens"], 0.01)
	assert.Greater(t, s.EstimatedRemainingSpend, 0.0)
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 15.0, CalculateCost(models.TierLarge, 1_000_000), 1e-9)
	assert.InDelta(t, 3.0, CalculateCost(models.TierMedium, 1_000_000), 1e-9)
	assert.InDelta(t, 0.5, CalculateCost(models.TierSmall, 1_000_000), 1e-9)
	assert.Zero(t, CalculateCost(models.TierLarge, 0))
}

func TestTierForTool(t *testing.T) {
	assert.Equal(t, models.TierLarge, TierForTool("comprehensive-performance-analysis"))
	assert.Equal(t, models.TierMedium, TierForTool("validate-pattern-statistical"))
	assert.Equal(t, models.TierSmall, TierForTool("get-video-context"))
}

func TestExceededError(t *testing.T) {
	err := NewExceededError("tokens", 10, 10)
	assert.EqualError(t, err, "budget exceeded for tokens: used 10 of 10")
}
