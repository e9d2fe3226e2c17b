package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// publishTimeout bounds each best-effort publish from the bridge.
const publishTimeout = 5 * time.Second

// Bridge adapts the orchestrator's emitter callbacks onto the publisher.
// All publishes are best-effort: event delivery never blocks or fails an
// analysis session.
type Bridge struct {
	publisher *EventPublisher
	logger    *slog.Logger
}

// NewBridge creates an emitter bridge.
func NewBridge(publisher *EventPublisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{publisher: publisher, logger: logger}
}

// SessionStatus publishes a session lifecycle transition.
func (b *Bridge) SessionStatus(sessionID string, status models.SessionStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := b.publisher.PublishSessionStatus(ctx, sessionID, SessionStatusPayload{
		Type:      EventTypeSessionStatus,
		SessionID: sessionID,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		b.logger.Warn("session status event dropped", "session_id", sessionID, "error", err)
	}
}

// TurnStarted publishes a turn.started event with the routing decision.
func (b *Bridge) TurnStarted(sessionID string, turn models.TurnType, decision models.RoutingDecision) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := b.publisher.PublishTurnStarted(ctx, sessionID, TurnStartedPayload{
		Type:      EventTypeTurnStarted,
		SessionID: sessionID,
		Turn:      turn,
		Decision:  decision,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		b.logger.Warn("turn started event dropped", "session_id", sessionID, "turn", turn, "error", err)
	}
}

// TurnCompleted publishes a turn.completed event with the usage snapshot.
func (b *Bridge) TurnCompleted(sessionID string, turn models.TurnType, usage models.BudgetUsage) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := b.publisher.PublishTurnCompleted(ctx, sessionID, TurnCompletedPayload{
		Type:      EventTypeTurnCompleted,
		SessionID: sessionID,
		Turn:      turn,
		Usage:     usage,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		b.logger.Warn("turn completed event dropped", "session_id", sessionID, "turn", turn, "error", err)
	}
}

// SessionResult publishes the terminal result summary for a session.
func (b *Bridge) SessionResult(result *models.OrchestratorResult) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err := b.publisher.PublishSessionResult(ctx, result.SessionID, SessionResultPayload{
		Type:         EventTypeSessionResult,
		SessionID:    result.SessionID,
		Success:      result.Success,
		Mode:         result.Mode,
		FallbackUsed: result.FallbackUsed,
		Pattern:      result.Pattern,
		Metrics:      result.Metrics,
		Error:        result.Error,
		Timestamp:    time.Now().Format(time.RFC3339Nano),
	})
	if err != nil {
		b.logger.Warn("session result event dropped", "session_id", result.SessionID, "error", err)
	}
}
