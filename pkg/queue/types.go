// Package queue provides the in-memory analysis request queue and the
// worker pool that drains it.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrQueueFull indicates the request queue is at capacity.
	ErrQueueFull = errors.New("queue full")

	// ErrQueueClosed indicates the pool has been stopped.
	ErrQueueClosed = errors.New("queue closed")
)

// AnalysisRequest is one queued unit of work.
type AnalysisRequest struct {
	ID         string                    `json:"id"`
	VideoID    string                    `json:"video_id"`
	Config     models.OrchestratorConfig `json:"config"`
	EnqueuedAt time.Time                 `json:"enqueued_at"`
}

// SessionExecutor runs one analysis request to completion.
//
// The executor owns the entire session lifecycle internally: session
// creation, the turn loop, result persistence, and event emission. The
// worker only handles claiming, the outer timeout, cancel registration,
// and Slack notifications.
type SessionExecutor interface {
	Execute(ctx context.Context, req *AnalysisRequest) *models.OrchestratorResult
}

// Config holds worker pool configuration.
type Config struct {
	WorkerCount    int           `yaml:"worker_count"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

// DefaultConfig returns a pool configuration suitable for a single pod.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    4,
		QueueCapacity:  64,
		SessionTimeout: 10 * time.Minute,
	}
}

// PoolHealth contains health information for the entire worker pool.
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	PodID          string         `json:"pod_id"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	QueueDepth     int            `json:"queue_depth"`
	QueueCapacity  int            `json:"queue_capacity"`
	ActiveRequests int            `json:"active_requests"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                string    `json:"id"`
	Status            string    `json:"status"` // "idle" or "working"
	CurrentRequestID  string    `json:"current_request_id,omitempty"`
	SessionsProcessed int       `json:"sessions_processed"`
	LastActivity      time.Time `json:"last_activity"`
}
