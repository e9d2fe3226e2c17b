package models

import "time"

// ToolCategory groups tools by the kind of evidence they produce.
type ToolCategory string

// Tool categories.
const (
	CategoryContext     ToolCategory = "context"
	CategorySearch      ToolCategory = "search"
	CategoryPerformance ToolCategory = "performance"
	CategorySemantic    ToolCategory = "semantic"
	CategoryComposite   ToolCategory = "composite"
)

// ToolCallStatus is the lifecycle state of a single dispatch attempt.
// A record is terminal once it reaches success, error, or skipped and is
// never mutated afterwards.
type ToolCallStatus string

// Tool call statuses.
const (
	ToolCallPending ToolCallStatus = "pending"
	ToolCallRunning ToolCallStatus = "running"
	ToolCallSuccess ToolCallStatus = "success"
	ToolCallError   ToolCallStatus = "error"
	ToolCallSkipped ToolCallStatus = "skipped"
)

// ToolError is a structured tool failure. It travels as data, never as a
// raised error, so every failure mode is representable in the session log.
type ToolError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Well-known tool error codes.
const (
	ErrCodeInvalidParams  = "INVALID_PARAMS"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUpstreamError  = "UPSTREAM_ERROR"
	ErrCodeExecutionError = "EXECUTION_ERROR"
	ErrCodeBudgetExceeded = "BUDGET_EXCEEDED"
	ErrCodeParseFailure   = "PARSE_FAILURE"
)

// ToolCallRecord is the append-only log entry for one tool dispatch attempt.
type ToolCallRecord struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	Params     map[string]any `json:"params,omitempty"`
	Status     ToolCallStatus `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	Error      *ToolError     `json:"error,omitempty"`
	TokensUsed int            `json:"tokens_used"`
	Cached     bool           `json:"cached"`
}

// ToolResponseMetadata carries execution details alongside a tool result.
type ToolResponseMetadata struct {
	Cached        bool          `json:"cached"`
	ExecutionTime time.Duration `json:"execution_time"`
	Attempts      int           `json:"attempts"`
}

// ToolResponse is the uniform envelope every wrapped tool handler returns.
// Exactly one of Data or Error is meaningful, keyed by Success.
type ToolResponse struct {
	Success  bool                 `json:"success"`
	Data     any                  `json:"data,omitempty"`
	Error    *ToolError           `json:"error,omitempty"`
	Metadata ToolResponseMetadata `json:"metadata"`
}
