package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// notifyLimit is PostgreSQL's NOTIFY payload ceiling, with headroom. Larger
// payloads are replaced by a minimal routing envelope; clients fetch the
// full event from the events table.
const notifyLimit = 7900

// EventPublisher persists events and broadcasts them via pg_notify.
// Persistent events go through a single transaction so the row insert and
// the NOTIFY fire atomically; transient copies skip persistence.
type EventPublisher struct {
	db *sql.DB
}

// NewEventPublisher creates a publisher over the shared database handle.
func NewEventPublisher(db *sql.DB) *EventPublisher {
	return &EventPublisher{db: db}
}

// PublishSessionStatus persists the status event on the session channel and
// broadcasts a transient copy to the global sessions channel. Both publishes
// are best-effort; the first error encountered is returned.
func (p *EventPublisher) PublishSessionStatus(ctx context.Context, sessionID string, payload SessionStatusPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SessionStatusPayload: %w", err)
	}

	var firstErr error
	if err := p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), raw); err != nil {
		slog.Warn("session status publish failed", "session_id", sessionID, "error", err)
		firstErr = err
	}
	if err := p.notifyOnly(ctx, GlobalSessionsChannel, raw); err != nil {
		slog.Warn("global session status publish failed", "session_id", sessionID, "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishTurnStarted persists and broadcasts a turn.started event.
func (p *EventPublisher) PublishTurnStarted(ctx context.Context, sessionID string, payload TurnStartedPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal TurnStartedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), raw)
}

// PublishTurnCompleted persists and broadcasts a turn.completed event.
func (p *EventPublisher) PublishTurnCompleted(ctx context.Context, sessionID string, payload TurnCompletedPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal TurnCompletedPayload: %w", err)
	}
	return p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), raw)
}

// PublishSessionResult persists and broadcasts the terminal result summary.
func (p *EventPublisher) PublishSessionResult(ctx context.Context, sessionID string, payload SessionResultPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SessionResultPayload: %w", err)
	}
	return p.persistAndNotify(ctx, sessionID, SessionChannel(sessionID), raw)
}

// persistAndNotify inserts the event row and fires pg_notify in one
// transaction, so the NOTIFY is held until COMMIT.
func (p *EventPublisher) persistAndNotify(ctx context.Context, sessionID, channel string, raw []byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var eventID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO events (session_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		sessionID, channel, raw, time.Now(),
	).Scan(&eventID)
	if err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	notifyPayload, err := notifyEnvelope(raw, eventID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event transaction: %w", err)
	}
	return nil
}

// notifyOnly broadcasts without persisting.
func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, raw []byte) error {
	payload, err := truncateIfNeeded(raw)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// notifyEnvelope injects the db event id for client catchup tracking and
// truncates when over the NOTIFY limit.
func notifyEnvelope(raw []byte, eventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", fmt.Errorf("decode payload for envelope: %w", err)
	}
	m["db_event_id"] = eventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode notify envelope: %w", err)
	}
	return truncateIfNeeded(enriched)
}

// truncateIfNeeded replaces oversized payloads with a routing-only envelope.
func truncateIfNeeded(raw []byte) (string, error) {
	if len(raw) <= notifyLimit {
		return string(raw), nil
	}

	var routing struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(raw, &routing); err != nil {
		return "", fmt.Errorf("extract routing fields: %w", err)
	}

	envelope := map[string]any{
		"type":       routing.Type,
		"session_id": routing.SessionID,
		"truncated":  true,
	}
	if routing.DBEventID != nil {
		envelope["db_event_id"] = *routing.DBEventID
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode truncation envelope: %w", err)
	}
	return string(out), nil
}
