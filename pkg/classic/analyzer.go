// Package classic is the non-agentic fallback analysis path: a fixed
// heuristic pipeline with no model calls and no tool budget. It works from
// whatever state the agentic flow committed before handing over, so partial
// hypotheses and search results are never lost.
package classic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

const (
	// similarityFloor is the minimum similarity for a candidate to count as
	// heuristic evidence.
	similarityFloor = 0.75

	// minEvidence is the minimum candidate support for reporting a pattern.
	minEvidence = 3

	// maxEvidenceIDs bounds the evidence list carried on the pattern.
	maxEvidenceIDs = 5
)

// Analyzer scores committed session state with fixed heuristics.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a classic analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Analyze produces a final report from committed state. It never calls out;
// the context is accepted for interface symmetry and honored on cancellation.
func (a *Analyzer) Analyze(ctx context.Context, state models.SessionState) (*models.FinalReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &models.FinalReport{
		FallbackUsed: true,
		GeneratedAt:  time.Now(),
	}

	// A validated pattern from the agentic flow outranks any heuristic.
	if p := strongestValidated(state.ValidationResults); p != nil {
		report.Pattern = p
		report.Confidence = p.Strength
		report.Summary = fmt.Sprintf(
			"Validated pattern %q (strength %.2f) explains the overperformance of %s.",
			p.Name, p.Strength, state.VideoID)
		return report, nil
	}

	pattern, support := a.similarityPattern(state)
	if pattern != nil {
		report.Pattern = pattern
		report.Confidence = pattern.Strength
		report.Summary = fmt.Sprintf(
			"Heuristic similarity cluster of %d videos (mean similarity %.2f) suggests %s overperformed on topical resonance.",
			support, pattern.Strength, state.VideoID)
		return report, nil
	}

	if state.Hypothesis != nil {
		report.Confidence = state.Hypothesis.Confidence * 0.5
		report.Summary = fmt.Sprintf("Unvalidated hypothesis retained for %s: %s",
			state.VideoID, state.Hypothesis.Statement)
		return report, nil
	}

	report.Summary = fmt.Sprintf(
		"No pattern could be established for %s with the available evidence.", state.VideoID)
	return report, nil
}

// similarityPattern derives a pattern from the committed candidate set:
// enough high-similarity candidates form a cluster whose strength is their
// mean similarity.
func (a *Analyzer) similarityPattern(state models.SessionState) (*models.Pattern, int) {
	if state.SearchResults == nil {
		return nil, 0
	}

	var cluster []models.Candidate
	for _, c := range state.SearchResults.Candidates {
		if c.Similarity >= similarityFloor {
			cluster = append(cluster, c)
		}
	}
	if len(cluster) < minEvidence {
		return nil, 0
	}

	sort.Slice(cluster, func(i, j int) bool { return cluster[i].Similarity > cluster[j].Similarity })

	var sum float64
	for _, c := range cluster {
		sum += c.Similarity
	}
	evidence := make([]string, 0, maxEvidenceIDs)
	for _, c := range cluster {
		if len(evidence) == maxEvidenceIDs {
			break
		}
		evidence = append(evidence, c.VideoID)
	}

	description := "High-similarity cluster identified without statistical validation."
	if state.Hypothesis != nil {
		description = state.Hypothesis.Statement
	}
	return &models.Pattern{
		Name:        "heuristic-similarity-cluster",
		Strength:    sum / float64(len(cluster)),
		Description: description,
		Evidence:    evidence,
	}, len(cluster)
}

// strongestValidated returns the strongest validated pattern, or nil.
func strongestValidated(results *models.ValidationResults) *models.Pattern {
	if results == nil || len(results.Patterns) == 0 {
		return nil
	}
	best := results.Patterns[0]
	for _, p := range results.Patterns[1:] {
		if p.Strength > best.Strength {
			best = p
		}
	}
	return &best
}
