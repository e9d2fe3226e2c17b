package models

import "time"

// TurnType identifies one step of the analysis state machine.
type TurnType string

// Turn types in execution order. Finalization is terminal.
const (
	TurnContextGathering     TurnType = "context_gathering"
	TurnHypothesisGeneration TurnType = "hypothesis_generation"
	TurnSearchPlanning       TurnType = "search_planning"
	TurnEnrichment           TurnType = "enrichment"
	TurnValidation           TurnType = "validation"
	TurnFinalization         TurnType = "finalization"
)

// SessionStatus is the terminal disposition of an analysis session.
type SessionStatus string

// Session statuses.
const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionTimedOut  SessionStatus = "timed_out"
	SessionCancelled SessionStatus = "cancelled"
)

// VideoContext is the metadata snapshot for the video under analysis.
type VideoContext struct {
	VideoID              string    `json:"video_id"`
	Title                string    `json:"title"`
	ChannelID            string    `json:"channel_id"`
	PublishedAt          time.Time `json:"published_at"`
	Views                int64     `json:"views"`
	BaselineViews        int64     `json:"baseline_views"`
	OverperformanceRatio float64   `json:"overperformance_ratio"`
	Topics               []string  `json:"topics,omitempty"`
}

// Hypothesis is the working causal explanation under investigation.
type Hypothesis struct {
	Statement          string   `json:"statement"`
	Confidence         float64  `json:"confidence"`
	SupportingEvidence []string `json:"supporting_evidence,omitempty"`
}

// Candidate is a comparison video considered as evidence.
type Candidate struct {
	VideoID              string  `json:"video_id"`
	Title                string  `json:"title"`
	Similarity           float64 `json:"similarity"`
	Views                int64   `json:"views"`
	OverperformanceRatio float64 `json:"overperformance_ratio"`
	Topic                string  `json:"topic,omitempty"`
}

// SearchResults accumulates the candidate evidence set across fanouts.
type SearchResults struct {
	Candidates []Candidate `json:"candidates"`
	TotalFound int         `json:"total_found"`
	Fanouts    int         `json:"fanouts"`
}

// Pattern is a named, statistically supported causal explanation.
type Pattern struct {
	Name        string   `json:"name"`
	Strength    float64  `json:"strength"`
	Description string   `json:"description,omitempty"`
	Evidence    []string `json:"evidence,omitempty"`
}

// ValidationResults holds the outcome of statistical validation batches.
type ValidationResults struct {
	Validated int       `json:"validated"`
	Rejected  int       `json:"rejected"`
	Patterns  []Pattern `json:"patterns,omitempty"`
}

// FinalReport is the session's terminal output.
type FinalReport struct {
	Pattern      *Pattern  `json:"pattern,omitempty"`
	Summary      string    `json:"summary"`
	Confidence   float64   `json:"confidence"`
	FallbackUsed bool      `json:"fallback_used"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// SessionError is an append-only entry in the session's error log.
type SessionError struct {
	Turn       TurnType  `json:"turn"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionState is the per-session mutable state. ToolCalls and Errors are
// append-only; the remaining fields are replaced wholesale by the latest
// turn's update (turns are sequential, so last-writer-wins is well defined).
type SessionState struct {
	VideoID           string             `json:"video_id"`
	VideoContext      *VideoContext      `json:"video_context,omitempty"`
	Hypothesis        *Hypothesis        `json:"hypothesis,omitempty"`
	SearchResults     *SearchResults     `json:"search_results,omitempty"`
	ValidationResults *ValidationResults `json:"validation_results,omitempty"`
	FinalReport       *FinalReport       `json:"final_report,omitempty"`
	ToolCalls         []ToolCallRecord   `json:"tool_calls"`
	Errors            []SessionError     `json:"errors"`
}

// StateUpdate is one turn's partial contribution to SessionState.
// Nil pointer fields leave the current value untouched; slice fields are
// appended to the existing logs.
type StateUpdate struct {
	VideoContext      *VideoContext
	Hypothesis        *Hypothesis
	SearchResults     *SearchResults
	ValidationResults *ValidationResults
	FinalReport       *FinalReport
	ToolCalls         []ToolCallRecord
	Errors            []SessionError
}
