package classic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
)

func TestAnalyze_PrefersValidatedPattern(t *testing.T) {
	a := NewAnalyzer(nil)
	state := models.SessionState{
		VideoID: "vid-1",
		ValidationResults: &models.ValidationResults{
			Validated: 4,
			Patterns: []models.Pattern{
				{Name: "weak", Strength: 0.3},
				{Name: "strong", Strength: 0.8},
			},
		},
		SearchResults: &models.SearchResults{Candidates: highSimilarityCandidates(5)},
	}

	report, err := a.Analyze(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, report.Pattern)
	assert.Equal(t, "strong", report.Pattern.Name)
	assert.InDelta(t, 0.8, report.Confidence, 1e-9)
	assert.True(t, report.FallbackUsed)
}

func TestAnalyze_HeuristicClusterFromCandidates(t *testing.T) {
	a := NewAnalyzer(nil)
	state := models.SessionState{
		VideoID:       "vid-2",
		Hypothesis:    &models.Hypothesis{Statement: "topic resonance", Confidence: 0.6},
		SearchResults: &models.SearchResults{Candidates: highSimilarityCandidates(4)},
	}

	report, err := a.Analyze(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, report.Pattern)
	assert.Equal(t, "heuristic-similarity-cluster", report.Pattern.Name)
	assert.Equal(t, "topic resonance", report.Pattern.Description)
	assert.GreaterOrEqual(t, report.Pattern.Strength, 0.75)
	assert.LessOrEqual(t, len(report.Pattern.Evidence), 5)
}

func TestAnalyze_TooFewCandidatesFallsBackToHypothesis(t *testing.T) {
	a := NewAnalyzer(nil)
	state := models.SessionState{
		VideoID:       "vid-3",
		Hypothesis:    &models.Hypothesis{Statement: "timing luck", Confidence: 0.8},
		SearchResults: &models.SearchResults{Candidates: highSimilarityCandidates(2)},
	}

	report, err := a.Analyze(context.Background(), state)
	require.NoError(t, err)
	assert.Nil(t, report.Pattern)
	assert.InDelta(t, 0.4, report.Confidence, 1e-9)
	assert.Contains(t, report.Summary, "timing luck")
}

func TestAnalyze_EmptyState(t *testing.T) {
	a := NewAnalyzer(nil)

	report, err := a.Analyze(context.Background(), models.SessionState{VideoID: "vid-4"})
	require.NoError(t, err)
	assert.Nil(t, report.Pattern)
	assert.Zero(t, report.Confidence)
	assert.Contains(t, report.Summary, "No pattern")
}

func TestAnalyze_CancelledContext(t *testing.T) {
	a := NewAnalyzer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, models.SessionState{VideoID: "vid-5"})
	assert.Error(t, err)
}

func highSimilarityCandidates(n int) []models.Candidate {
	out := make([]models.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Candidate{
			VideoID:    string(rune('a'+i)) + "-vid",
			Similarity: 0.9 - float64(i)*0.02,
		})
	}
	return out
}
