package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/notify"
)

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// RequestRegistry is the subset of WorkerPool used by Worker for request
// registration.
type RequestRegistry interface {
	RegisterRequest(requestID string, cancel context.CancelFunc)
	UnregisterRequest(requestID string)
}

// Worker drains the request queue and runs sessions through the executor.
type Worker struct {
	id       string
	podID    string
	config   Config
	executor SessionExecutor
	notifier *notify.Service
	pool     RequestRegistry
	jobs     <-chan *AnalysisRequest
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu                sync.RWMutex
	status            WorkerStatus
	currentRequestID  string
	sessionsProcessed int
	lastActivity      time.Time
}

// NewWorker creates a new queue worker. notifier may be nil.
func NewWorker(id, podID string, cfg Config, executor SessionExecutor, notifier *notify.Service, pool *WorkerPool) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		config:       cfg,
		executor:     executor,
		notifier:     notifier,
		pool:         pool,
		jobs:         pool.jobs,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                w.id,
		Status:            string(w.status),
		CurrentRequestID:  w.currentRequestID,
		SessionsProcessed: w.sessionsProcessed,
		LastActivity:      w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, worker shutting down")
			return
		case req := <-w.jobs:
			w.process(ctx, req)
		}
	}
}

// process runs one analysis request to completion.
func (w *Worker) process(ctx context.Context, req *AnalysisRequest) {
	log := slog.With("request_id", req.ID, "video_id", req.VideoID, "worker_id", w.id)
	log.Info("Request claimed", "queued_for", time.Since(req.EnqueuedAt))

	w.setStatus(WorkerStatusWorking, req.ID)
	defer w.setStatus(WorkerStatusIdle, "")

	// The executor enforces the per-session budget duration internally; this
	// timeout is the hard outer bound.
	sessionCtx, cancelSession := context.WithTimeout(ctx, w.config.SessionTimeout)
	defer cancelSession()

	w.pool.RegisterRequest(req.ID, cancelSession)
	defer w.pool.UnregisterRequest(req.ID)

	threadTS := w.notifier.NotifyAnalysisStarted(sessionCtx, req.VideoID)

	result := w.executor.Execute(sessionCtx, req)

	// Nil-guard: synthesize a safe result if the executor returned nil.
	if result == nil {
		errMsg := "executor returned nil result"
		switch {
		case errors.Is(sessionCtx.Err(), context.DeadlineExceeded):
			errMsg = fmt.Sprintf("session timed out after %v", w.config.SessionTimeout)
		case errors.Is(sessionCtx.Err(), context.Canceled):
			errMsg = context.Canceled.Error()
		}
		result = &models.OrchestratorResult{
			VideoID: req.VideoID,
			Success: false,
			Mode:    req.Config.Mode,
			Error:   errMsg,
		}
	}

	// Terminal notification uses a background context — the session context
	// may already be cancelled.
	w.notifier.NotifyAnalysisCompleted(context.WithoutCancel(sessionCtx), result, threadTS)

	w.mu.Lock()
	w.sessionsProcessed++
	w.mu.Unlock()

	log.Info("Request processing complete",
		"session_id", result.SessionID, "success", result.Success,
		"fallback", result.FallbackUsed, "duration", result.Metrics.TotalDuration)
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, requestID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentRequestID = requestID
	w.lastActivity = time.Now()
}
