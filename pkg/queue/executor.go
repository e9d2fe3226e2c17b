package queue

import (
	"context"

	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/orchestrator"
)

// OrchestratorExecutor adapts the orchestrator to the SessionExecutor
// interface.
type OrchestratorExecutor struct {
	orch *orchestrator.Orchestrator
}

// NewOrchestratorExecutor wraps an orchestrator for queue processing.
func NewOrchestratorExecutor(orch *orchestrator.Orchestrator) *OrchestratorExecutor {
	return &OrchestratorExecutor{orch: orch}
}

// Execute runs the full analysis session for a request.
func (e *OrchestratorExecutor) Execute(ctx context.Context, req *AnalysisRequest) *models.OrchestratorResult {
	return e.orch.Run(ctx, req.VideoID, req.Config)
}
