// Package events provides real-time progress delivery for analysis
// sessions: typed payloads are persisted and broadcast through PostgreSQL
// NOTIFY/LISTEN for cross-pod distribution, then fanned out to WebSocket
// subscribers. It also bridges the orchestrator's emitter callbacks onto
// that pipeline, replacing any notion of a process-global progress tap.
package events

// Event types published to session channels.
const (
	// Session lifecycle transitions.
	EventTypeSessionStatus = "session.status"

	// Turn lifecycle. turn.started carries the routing decision; turn.completed
	// carries the budget usage snapshot after the turn's commit.
	EventTypeTurnStarted   = "turn.started"
	EventTypeTurnCompleted = "turn.completed"

	// Terminal result summary, published once per session.
	EventTypeSessionResult = "session.result"
)

// GlobalSessionsChannel carries session-level status events for list views.
const GlobalSessionsChannel = "sessions"

// SessionChannel returns the NOTIFY channel for one session's events.
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the client-to-server WebSocket message shape.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe", "unsubscribe", "ping"
	Channel string `json:"channel,omitempty"`
}
