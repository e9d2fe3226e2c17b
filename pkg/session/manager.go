package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediapulse/patternlab/pkg/models"
)

// Sentinel errors for session lookup and lifecycle violations.
var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session already ended")
)

// Manager holds all in-memory sessions for this process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create allocates a fresh session for the given video and returns its ID.
func (m *Manager) Create(videoID string, cfg models.OrchestratorConfig) (*Session, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video id is required")
	}
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		Status:    models.SessionPending,
		Config:    cfg,
		State:     models.SessionState{VideoID: videoID},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the live session for an ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return s, nil
}

// List returns snapshots of all sessions.
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Update merges one turn's partial update into the session state as a single
// atomic commit. ToolCalls and Errors are appended, never replaced or
// truncated; object fields are replaced wholesale by the latest non-nil
// value. The pre-merge state is retained as the recovery point.
func (m *Manager) Update(sessionID string, update models.StateUpdate) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if isTerminal(s.Status) {
		return fmt.Errorf("%w: %s", ErrEnded, sessionID)
	}

	s.lastGood = cloneState(s.State)
	mergeState(&s.State, update)
	s.UpdatedAt = time.Now()
	return nil
}

// End marks the session terminal with the given status; no further updates
// are accepted. Ending an already-terminal session is a no-op.
func (m *Manager) End(sessionID string, status models.SessionStatus) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if isTerminal(s.Status) {
		return nil
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

// Recover returns the last known-good state for a session that errored
// mid-turn, so the orchestrator can finalize with partial results instead of
// losing prior work.
func (m *Manager) Recover(sessionID string) (models.SessionState, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return models.SessionState{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastGood.VideoID == "" {
		// No committed turn yet; the initial state is the recovery point.
		return cloneState(s.State), nil
	}
	return cloneState(s.lastGood), nil
}

// Remove discards a session from orchestrator memory. Called after the
// session has been handed to the persistence layer.
func (m *Manager) Remove(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	delete(m.sessions, sessionID)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// mergeState applies the append-only merge semantics.
func mergeState(state *models.SessionState, update models.StateUpdate) {
	if update.VideoContext != nil {
		state.VideoContext = update.VideoContext
	}
	if update.Hypothesis != nil {
		state.Hypothesis = update.Hypothesis
	}
	if update.SearchResults != nil {
		state.SearchResults = update.SearchResults
	}
	if update.ValidationResults != nil {
		state.ValidationResults = update.ValidationResults
	}
	if update.FinalReport != nil {
		state.FinalReport = update.FinalReport
	}
	state.ToolCalls = append(state.ToolCalls, update.ToolCalls...)
	state.Errors = append(state.Errors, update.Errors...)
}

func isTerminal(status models.SessionStatus) bool {
	switch status {
	case models.SessionCompleted, models.SessionFailed, models.SessionTimedOut, models.SessionCancelled:
		return true
	default:
		return false
	}
}
