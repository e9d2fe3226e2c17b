package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/notify"
)

// WorkerPool manages the request queue and its workers.
type WorkerPool struct {
	podID    string
	config   Config
	executor SessionExecutor
	notifier *notify.Service

	jobs     chan *AnalysisRequest
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once

	// Request cancel registry: request_id → cancel function
	mu             sync.RWMutex
	activeRequests map[string]context.CancelFunc
	closed         bool
	started        bool
}

// NewWorkerPool creates a new worker pool. notifier may be nil (Slack
// notifications disabled).
func NewWorkerPool(podID string, cfg Config, executor SessionExecutor, notifier *notify.Service) *WorkerPool {
	return &WorkerPool{
		podID:          podID,
		config:         cfg,
		executor:       executor,
		notifier:       notifier,
		jobs:           make(chan *AnalysisRequest, cfg.QueueCapacity),
		workers:        make([]*Worker, 0, cfg.WorkerCount),
		stopCh:         make(chan struct{}),
		activeRequests: make(map[string]context.CancelFunc),
	}
}

// Start spawns worker goroutines. It is safe to call multiple times;
// subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true
	p.mu.Unlock()

	slog.Info("Starting worker pool", "pod_id", p.podID, "worker_count", p.config.WorkerCount)

	for i := 0; i < p.config.WorkerCount; i++ {
		workerID := fmt.Sprintf("%s-worker-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.config, p.executor, p.notifier, p)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	slog.Info("Worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current sessions before exiting.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping worker pool gracefully")

	p.mu.Lock()
	p.closed = true
	active := len(p.activeRequests)
	p.mu.Unlock()
	if active > 0 {
		slog.Info("Waiting for active sessions to complete", "count", active)
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	for _, worker := range p.workers {
		worker.Stop()
	}

	slog.Info("Worker pool stopped gracefully")
}

// Enqueue adds an analysis request to the queue without blocking.
func (p *WorkerPool) Enqueue(videoID string, cfg models.OrchestratorConfig) (*AnalysisRequest, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, ErrQueueClosed
	}

	req := &AnalysisRequest{
		ID:         uuid.New().String(),
		VideoID:    videoID,
		Config:     cfg,
		EnqueuedAt: time.Now(),
	}

	select {
	case p.jobs <- req:
		slog.Info("Analysis request enqueued",
			"request_id", req.ID, "video_id", videoID, "queue_depth", len(p.jobs))
		return req, nil
	default:
		return nil, ErrQueueFull
	}
}

// RegisterRequest stores a cancel function for manual cancellation.
func (p *WorkerPool) RegisterRequest(requestID string, cancel context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeRequests[requestID] = cancel
}

// UnregisterRequest removes the cancel function when processing ends.
func (p *WorkerPool) UnregisterRequest(requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.activeRequests, requestID)
}

// CancelRequest triggers context cancellation for an in-flight request on
// this pod. Returns true if the request was found and cancelled.
func (p *WorkerPool) CancelRequest(requestID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if cancel, ok := p.activeRequests[requestID]; ok {
		cancel()
		return true
	}
	return false
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health() *PoolHealth {
	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == string(WorkerStatusWorking) {
			activeWorkers++
		}
	}

	p.mu.RLock()
	activeRequests := len(p.activeRequests)
	p.mu.RUnlock()

	return &PoolHealth{
		IsHealthy:      len(p.workers) > 0,
		PodID:          p.podID,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		QueueDepth:     len(p.jobs),
		QueueCapacity:  p.config.QueueCapacity,
		ActiveRequests: activeRequests,
		WorkerStats:    workerStats,
	}
}
