package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ResultStore persists finished session results. Implements the
// orchestrator's Persister interface.
type ResultStore struct {
	db *sql.DB
}

// NewResultStore creates a result store over the shared database handle.
func NewResultStore(client *Client) *ResultStore {
	return &ResultStore{db: client.DB()}
}

// SaveResult upserts the terminal result for a session. Re-running a session
// id replaces the previous row.
func (s *ResultStore) SaveResult(ctx context.Context, sessionID string, result *models.OrchestratorResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	var patternName sql.NullString
	if result.Pattern != nil {
		patternName = sql.NullString{String: result.Pattern.Name, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_results (session_id, video_id, success, mode, fallback_used, pattern_name, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (session_id) DO UPDATE SET
		   video_id = EXCLUDED.video_id,
		   success = EXCLUDED.success,
		   mode = EXCLUDED.mode,
		   fallback_used = EXCLUDED.fallback_used,
		   pattern_name = EXCLUDED.pattern_name,
		   result = EXCLUDED.result,
		   created_at = EXCLUDED.created_at`,
		sessionID, result.VideoID, result.Success, string(result.Mode),
		result.FallbackUsed, patternName, raw, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save result for session %s: %w", sessionID, err)
	}
	return nil
}

// GetResult loads the stored result for a session.
func (s *ResultStore) GetResult(ctx context.Context, sessionID string) (*models.OrchestratorResult, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM analysis_results WHERE session_id = $1`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result for session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load result for session %s: %w", sessionID, err)
	}

	var result models.OrchestratorResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode stored result for session %s: %w", sessionID, err)
	}
	return &result, nil
}

// ResultSummary is one row of a result listing, without the full report.
type ResultSummary struct {
	SessionID    string    `json:"session_id"`
	VideoID      string    `json:"video_id"`
	Success      bool      `json:"success"`
	Mode         string    `json:"mode"`
	FallbackUsed bool      `json:"fallback_used"`
	PatternName  string    `json:"pattern_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListResults returns the most recent results, optionally filtered by video.
func (s *ResultStore) ListResults(ctx context.Context, videoID string, limit int) ([]ResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT session_id, video_id, success, mode, fallback_used, pattern_name, created_at
	          FROM analysis_results`
	args := []any{}
	if videoID != "" {
		query += ` WHERE video_id = $1`
		args = append(args, videoID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var summaries []ResultSummary
	for rows.Next() {
		var summary ResultSummary
		var patternName sql.NullString
		if err := rows.Scan(&summary.SessionID, &summary.VideoID, &summary.Success,
			&summary.Mode, &summary.FallbackUsed, &patternName, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		summary.PatternName = patternName.String
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// StoredEvent is one persisted session event, ordered by ID.
type StoredEvent struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventsSince returns a session's persisted events with id greater than
// afterID, oldest first. Used by WebSocket clients to catch up after a
// reconnect.
func (s *ResultStore) EventsSince(ctx context.Context, sessionID string, afterID int64) ([]StoredEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, channel, payload, created_at
		 FROM events WHERE session_id = $1 AND id > $2 ORDER BY id`,
		sessionID, afterID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Channel, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteEventsBefore removes persisted events older than the cutoff and
// returns the number of rows deleted. Called by the retention sweeper.
func (s *ResultStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return res.RowsAffected()
}
