package events

import (
	"github.com/mediapulse/patternlab/pkg/models"
)

// SessionStatusPayload is published on every session lifecycle transition,
// to both the session channel and the global sessions channel.
type SessionStatusPayload struct {
	Type      string               `json:"type"` // always EventTypeSessionStatus
	SessionID string               `json:"session_id"`
	VideoID   string               `json:"video_id,omitempty"`
	Status    models.SessionStatus `json:"status"`
	Timestamp string               `json:"timestamp"` // RFC3339Nano
}

// TurnStartedPayload is published when a turn begins, carrying the routing
// decision so clients can display which tier is reasoning and why.
type TurnStartedPayload struct {
	Type      string                 `json:"type"` // always EventTypeTurnStarted
	SessionID string                 `json:"session_id"`
	Turn      models.TurnType        `json:"turn"`
	Decision  models.RoutingDecision `json:"decision"`
	Timestamp string                 `json:"timestamp"` // RFC3339Nano
}

// TurnCompletedPayload is published after a turn's state commit with the
// post-commit budget usage snapshot.
type TurnCompletedPayload struct {
	Type      string             `json:"type"` // always EventTypeTurnCompleted
	SessionID string             `json:"session_id"`
	Turn      models.TurnType    `json:"turn"`
	Usage     models.BudgetUsage `json:"usage"`
	Timestamp string             `json:"timestamp"` // RFC3339Nano
}

// SessionResultPayload is the terminal summary, published once per session.
type SessionResultPayload struct {
	Type         string              `json:"type"` // always EventTypeSessionResult
	SessionID    string              `json:"session_id"`
	Success      bool                `json:"success"`
	Mode         models.AnalysisMode `json:"mode"`
	FallbackUsed bool                `json:"fallback_used"`
	Pattern      *models.Pattern     `json:"pattern,omitempty"`
	Metrics      models.Metrics      `json:"metrics"`
	Error        string              `json:"error,omitempty"`
	Timestamp    string              `json:"timestamp"` // RFC3339Nano
}
