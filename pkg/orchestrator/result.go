package orchestrator

import (
	"context"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// buildResult assembles the session's single contractual output, marks the
// session terminal, hands it to the persistence layer, and discards it from
// orchestrator memory.
func (o *Orchestrator) buildResult(
	ctx context.Context,
	r *run,
	mode models.AnalysisMode,
	fallbackUsed bool,
	errMsg string,
) *models.OrchestratorResult {
	snap := r.sess.Snapshot()
	usage := r.tracker.Usage()

	result := &models.OrchestratorResult{
		SessionID:    r.sess.ID,
		VideoID:      snap.State.VideoID,
		Success:      errMsg == "" && snap.State.FinalReport != nil,
		Mode:         mode,
		FallbackUsed: fallbackUsed,
		Report:       snap.State.FinalReport,
		Metrics: models.Metrics{
			TotalDuration: time.Since(r.started),
			TotalTokens:   usage.Tokens,
			TotalCost:     usage.Costs.Total,
			ToolCallCount: usage.ToolCalls,
			ModelSwitches: r.router.SwitchCount(),
		},
		BudgetUsage: usage,
		Error:       errMsg,
	}
	if snap.State.FinalReport != nil {
		result.Pattern = snap.State.FinalReport.Pattern
	}

	status := models.SessionCompleted
	switch {
	case ctx.Err() != nil && !result.Success:
		status = models.SessionTimedOut
	case !result.Success:
		status = models.SessionFailed
	}
	if err := o.sessions.End(r.sess.ID, status); err != nil {
		r.logger.Warn("session end failed", "error", err)
	}
	o.emitStatus(r.sess.ID, status)

	if o.persister != nil {
		// Persistence runs against a fresh context: the session deadline may
		// already have fired and the result must still be stored.
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := o.persister.SaveResult(persistCtx, r.sess.ID, result); err != nil {
			r.logger.Error("result persistence failed", "error", err)
		}
	}

	if err := o.sessions.Remove(r.sess.ID); err != nil {
		r.logger.Warn("session removal failed", "error", err)
	}

	if o.emitter != nil {
		o.emitter.SessionResult(result)
	}

	r.logger.Info("session finished",
		"success", result.Success, "mode", result.Mode, "fallback", result.FallbackUsed,
		"tool_calls", result.Metrics.ToolCallCount, "tokens", result.Metrics.TotalTokens,
		"cost", result.Metrics.TotalCost, "duration", result.Metrics.TotalDuration)
	return result
}
