// Package session owns per-session mutable state and applies turn results
// as atomic merges. Array-valued fields are append-only; scalar and object
// fields are last-writer-wins at turn granularity.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// Session is one analysis session's live record.
type Session struct {
	ID        string                    `json:"id"`
	Status    models.SessionStatus      `json:"status"`
	Config    models.OrchestratorConfig `json:"config"`
	State     models.SessionState       `json:"state"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Error     string                    `json:"error,omitempty"`

	mu         sync.RWMutex
	cancelFunc context.CancelFunc
	// lastGood is the most recent committed state snapshot, kept for
	// recovery after a mid-turn failure.
	lastGood models.SessionState
}

// SetStatus updates the session status.
func (s *Session) SetStatus(status models.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.UpdatedAt = time.Now()
}

// SetError records a failure message and marks the session failed.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = msg
	s.Status = models.SessionFailed
	s.UpdatedAt = time.Now()
}

// SetCancelFunc stores the cancel function driving this session's context.
func (s *Session) SetCancelFunc(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFunc = cancel
}

// Cancel cancels the session's processing context. Returns false when no
// cancel function is registered.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFunc == nil {
		return false
	}
	s.cancelFunc()
	s.Status = models.SessionCancelled
	s.UpdatedAt = time.Now()
	return true
}

// Snapshot returns a deep copy of the session safe for concurrent reading.
func (s *Session) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Session{
		ID:        s.ID,
		Status:    s.Status,
		Config:    s.Config,
		State:     cloneState(s.State),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Error:     s.Error,
	}
}

// cloneState deep-copies the slice-valued fields so callers can't alias the
// append-only logs. Pointer-valued object fields are replaced wholesale on
// update, never mutated in place, so sharing them is safe.
func cloneState(state models.SessionState) models.SessionState {
	out := state
	out.ToolCalls = make([]models.ToolCallRecord, len(state.ToolCalls))
	copy(out.ToolCalls, state.ToolCalls)
	out.Errors = make([]models.SessionError, len(state.Errors))
	copy(out.Errors, state.Errors)
	return out
}
