package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mediapulse/patternlab/pkg/llm"
	"github.com/mediapulse/patternlab/pkg/models"
)

// searchTopicLimit caps how many topic-scoped queries one fanout issues.
const searchTopicLimit = 3

// executeTurn runs one turn and returns the partial state update it
// produced. A returned error means the turn produced nothing usable; tool
// failures that still leave a usable partial result are absorbed into the
// update's error log instead.
func (o *Orchestrator) executeTurn(
	ctx context.Context,
	r *run,
	turn models.TurnType,
	decision models.RoutingDecision,
	state *models.SessionState,
) (models.StateUpdate, error) {
	switch turn {
	case models.TurnContextGathering:
		return o.gatherContext(ctx, r, decision)
	case models.TurnHypothesisGeneration:
		return o.generateHypothesis(ctx, r, decision, state)
	case models.TurnSearchPlanning:
		return o.planAndSearch(ctx, r, decision, state)
	case models.TurnEnrichment:
		return o.enrich(ctx, r, decision, state)
	case models.TurnValidation:
		return o.validate(ctx, r, decision, state)
	case models.TurnFinalization:
		return o.finalize(ctx, r, decision, state)
	default:
		return models.StateUpdate{}, fmt.Errorf("unknown turn type %q", turn)
	}
}

// gatherContext fetches the video context and channel baseline. The video
// context is required; baseline failure degrades to the context's own
// baseline figure.
func (o *Orchestrator) gatherContext(ctx context.Context, r *run, decision models.RoutingDecision) (models.StateUpdate, error) {
	videoID := r.sess.Snapshot().State.VideoID
	outcomes := o.dispatch(ctx, r, decision, []plannedCall{
		{name: ToolGetVideoContext, params: map[string]any{"video_id": videoID}},
		{name: ToolGetChannelBaseline, params: map[string]any{"video_id": videoID}},
	})

	update := models.StateUpdate{ToolCalls: records(outcomes)}
	var vc *models.VideoContext
	for _, out := range outcomes {
		if out.call.name != ToolGetVideoContext || !out.succeeded() {
			continue
		}
		decoded, err := decodeData[models.VideoContext](out.resp.Data)
		if err != nil {
			return update, fmt.Errorf("video context payload: %w", err)
		}
		vc = decoded
	}
	if vc == nil {
		return update, fmt.Errorf("video context unavailable for %s", videoID)
	}

	update.VideoContext = vc
	update.Errors = failureErrors(models.TurnContextGathering, outcomes)
	return update, nil
}

// generateHypothesis asks the routed tier for a causal hypothesis about the
// overperformance. A parse failure gets one stricter retry before the turn
// is abandoned.
func (o *Orchestrator) generateHypothesis(
	ctx context.Context,
	r *run,
	decision models.RoutingDecision,
	state *models.SessionState,
) (models.StateUpdate, error) {
	if state.VideoContext == nil {
		return models.StateUpdate{}, fmt.Errorf("no video context to hypothesize from")
	}
	contextJSON, err := json.Marshal(state.VideoContext)
	if err != nil {
		return models.StateUpdate{}, fmt.Errorf("marshal video context: %w", err)
	}

	prompt := fmt.Sprintf(hypothesisPrompt, string(contextJSON))
	var hypothesis models.Hypothesis
	resp, err := llm.GenerateJSON(ctx, o.llm, llm.Request{
		Tier:   decision.Tier,
		System: analystSystemPrompt,
		Prompt: prompt,
	}, &hypothesis)
	if resp != nil {
		r.tracker.RecordModelUsage(resp.Tier, resp.TotalTokens(), resp.Cost)
	}
	if err != nil {
		var parseErr *llm.ParseError
		if !errors.As(err, &parseErr) {
			return models.StateUpdate{}, err
		}
		// One stricter retry on the same tier.
		resp, err = llm.GenerateJSON(ctx, o.llm, llm.Request{
			Tier:   decision.Tier,
			System: analystSystemPrompt,
			Prompt: prompt + strictJSONSuffix,
		}, &hypothesis)
		if resp != nil {
			r.tracker.RecordModelUsage(resp.Tier, resp.TotalTokens(), resp.Cost)
		}
		if err != nil {
			return models.StateUpdate{}, err
		}
	}

	if hypothesis.Statement == "" {
		return models.StateUpdate{}, fmt.Errorf("model produced an empty hypothesis")
	}
	return models.StateUpdate{Hypothesis: &hypothesis}, nil
}

// planAndSearch runs one fanout round of similarity and outlier searches.
// When the fanout budget is exhausted the turn degrades to a no-op rather
// than failing the session.
func (o *Orchestrator) planAndSearch(
	ctx context.Context,
	r *run,
	decision models.RoutingDecision,
	state *models.SessionState,
) (models.StateUpdate, error) {
	if state.Hypothesis == nil {
		return models.StateUpdate{}, fmt.Errorf("no hypothesis to search against")
	}
	if !r.tracker.RecordFanout() {
		r.logger.Info("fanout budget exhausted, skipping search round")
		return models.StateUpdate{}, nil
	}

	calls := []plannedCall{{
		name: ToolSemanticSearchSimilar,
		params: map[string]any{
			"query":    state.Hypothesis.Statement,
			"video_id": state.VideoID,
			"limit":    10,
		},
	}}
	if state.VideoContext != nil {
		topics := state.VideoContext.Topics
		if len(topics) > searchTopicLimit {
			topics = topics[:searchTopicLimit]
		}
		for _, topic := range topics {
			calls = append(calls, plannedCall{
				name: ToolSemanticSearchSimilar,
				params: map[string]any{
					"query":    state.Hypothesis.Statement,
					"video_id": state.VideoID,
					"topic":    topic,
					"limit":    10,
				},
			})
		}
		calls = append(calls, plannedCall{
			name: ToolSearchOutliers,
			params: map[string]any{
				"topic":    firstOrEmpty(topics),
				"video_id": state.VideoID,
			},
		})
	}

	outcomes := o.dispatch(ctx, r, decision, calls)
	update := models.StateUpdate{
		ToolCalls: records(outcomes),
		Errors:    failureErrors(models.TurnSearchPlanning, outcomes),
	}

	merged := mergeCandidates(state.SearchResults, outcomes)
	if merged != nil {
		update.SearchResults = merged
	}
	return update, nil
}

// enrich augments the video context with topic metadata. Failures degrade;
// enrichment is never load-bearing.
func (o *Orchestrator) enrich(
	ctx context.Context,
	r *run,
	decision models.RoutingDecision,
	state *models.SessionState,
) (models.StateUpdate, error) {
	if state.VideoContext == nil {
		return models.StateUpdate{}, nil
	}
	outcomes := o.dispatch(ctx, r, decision, []plannedCall{{
		name:   ToolEnrichTopicMetadata,
		params: map[string]any{"video_id": state.VideoContext.VideoID},
	}})

	update := models.StateUpdate{
		ToolCalls: records(outcomes),
		Errors:    failureErrors(models.TurnEnrichment, outcomes),
	}
	for _, out := range outcomes {
		if !out.succeeded() {
			continue
		}
		topics, err := decodeData[[]string](out.resp.Data)
		if err != nil || topics == nil {
			continue
		}
		enriched := *state.VideoContext
		enriched.Topics = mergeTopics(enriched.Topics, *topics)
		update.VideoContext = &enriched
	}
	return update, nil
}

// validate runs a statistical validation batch over the candidate set.
// The batch is truncated to the remaining candidate budget when needed;
// with no admissible candidates the turn degrades to a no-op.
func (o *Orchestrator) validate(
	ctx context.Context,
	r *run,
	decision models.RoutingDecision,
	state *models.SessionState,
) (models.StateUpdate, error) {
	if state.Hypothesis == nil || state.SearchResults == nil || len(state.SearchResults.Candidates) == 0 {
		r.logger.Info("nothing to validate, skipping")
		return models.StateUpdate{}, nil
	}

	candidates := state.SearchResults.Candidates
	if !r.tracker.RecordValidation(len(candidates)) {
		remaining := r.tracker.Remaining()
		if remaining.Validations == 0 || remaining.Candidates == 0 {
			r.logger.Info("validation budget exhausted, skipping")
			return models.StateUpdate{}, nil
		}
		candidates = candidates[:minInt(len(candidates), remaining.Candidates)]
		if !r.tracker.RecordValidation(len(candidates)) {
			return models.StateUpdate{}, nil
		}
		r.logger.Info("candidate budget pressure, validating truncated batch",
			"batch_size", len(candidates))
	}

	outcomes := o.dispatch(ctx, r, decision, []plannedCall{{
		name: ToolValidatePatternStatistical,
		params: map[string]any{
			"hypothesis": toParamObject(state.Hypothesis),
			"candidates": toParamArray(candidates),
		},
	}})

	update := models.StateUpdate{
		ToolCalls: records(outcomes),
		Errors:    failureErrors(models.TurnValidation, outcomes),
	}
	for _, out := range outcomes {
		if !out.succeeded() {
			continue
		}
		results, err := decodeData[models.ValidationResults](out.resp.Data)
		if err != nil {
			return update, fmt.Errorf("validation payload: %w", err)
		}
		update.ValidationResults = results
	}
	return update, nil
}

// finalize produces the terminal report. The summary comes from the routed
// tier; when the model is unreachable the report is assembled from committed
// state alone so the session still terminates with a result.
func (o *Orchestrator) finalize(
	ctx context.Context,
	r *run,
	decision models.RoutingDecision,
	state *models.SessionState,
) (models.StateUpdate, error) {
	report := &models.FinalReport{
		Pattern:     strongestPattern(state.ValidationResults),
		GeneratedAt: time.Now(),
	}
	if state.Hypothesis != nil {
		report.Confidence = state.Hypothesis.Confidence
	}
	if report.Pattern != nil && report.Pattern.Strength > report.Confidence {
		report.Confidence = report.Pattern.Strength
	}

	stateJSON, err := json.Marshal(state)
	if err == nil {
		var summary struct {
			Summary string `json:"summary"`
		}
		resp, genErr := llm.GenerateJSON(ctx, o.llm, llm.Request{
			Tier:   decision.Tier,
			System: analystSystemPrompt,
			Prompt: fmt.Sprintf(summaryPrompt, string(stateJSON)),
		}, &summary)
		if resp != nil {
			r.tracker.RecordModelUsage(resp.Tier, resp.TotalTokens(), resp.Cost)
		}
		if genErr == nil {
			report.Summary = summary.Summary
		} else {
			r.logger.Warn("summary generation failed, using assembled report", "error", genErr)
		}
	}
	if report.Summary == "" {
		report.Summary = assembledSummary(state, report.Pattern)
	}

	return models.StateUpdate{FinalReport: report}, nil
}

// strongestPattern picks the highest-strength validated pattern.
func strongestPattern(results *models.ValidationResults) *models.Pattern {
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

// assembledSummary builds a minimal textual report without model help.
func assembledSummary(state *models.SessionState, pattern *models.Pattern) string {
	switch {
	case pattern != nil:
		return fmt.Sprintf("Pattern %q (strength %.2f) explains the overperformance of %s.",
			pattern.Name, pattern.Strength, state.VideoID)
	case state.Hypothesis != nil:
		return fmt.Sprintf("Unvalidated hypothesis for %s: %s",
			state.VideoID, state.Hypothesis.Statement)
	default:
		return fmt.Sprintf("No validated pattern found for %s.", state.VideoID)
	}
}

// mergeCandidates folds successful search outcomes into the existing result
// set, deduplicating by video ID. Returns nil when no outcome contributed.
func mergeCandidates(prev *models.SearchResults, outcomes []callOutcome) *models.SearchResults {
	merged := &models.SearchResults{}
	seen := make(map[string]bool)
	if prev != nil {
		merged.Fanouts = prev.Fanouts
		for _, c := range prev.Candidates {
			merged.Candidates = append(merged.Candidates, c)
			seen[c.VideoID] = true
		}
	}

	contributed := false
	for _, out := range outcomes {
		if !out.succeeded() {
			continue
		}
		candidates, err := decodeData[[]models.Candidate](out.resp.Data)
		if err != nil || candidates == nil {
			continue
		}
		contributed = true
		for _, c := range *candidates {
			if seen[c.VideoID] {
				continue
			}
			seen[c.VideoID] = true
			merged.Candidates = append(merged.Candidates, c)
		}
	}
	if !contributed {
		return nil
	}
	merged.TotalFound = len(merged.Candidates)
	merged.Fanouts++
	return merged
}

func mergeTopics(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range extra {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func firstOrEmpty(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
