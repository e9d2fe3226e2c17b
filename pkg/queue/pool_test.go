package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
)

// fakeExecutor records requests and returns canned results.
type fakeExecutor struct {
	mu       sync.Mutex
	seen     []string
	delay    time.Duration
	executed atomic.Int64
	block    chan struct{} // when set, Execute waits for release or ctx
}

func (f *fakeExecutor) Execute(ctx context.Context, req *AnalysisRequest) *models.OrchestratorResult {
	f.mu.Lock()
	f.seen = append(f.seen, req.VideoID)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			f.executed.Add(1)
			return &models.OrchestratorResult{
				SessionID: "sess-" + req.ID, VideoID: req.VideoID,
				Success: false, Mode: req.Config.Mode, Error: ctx.Err().Error(),
			}
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.executed.Add(1)
	return &models.OrchestratorResult{
		SessionID: "sess-" + req.ID,
		VideoID:   req.VideoID,
		Success:   true,
		Mode:      req.Config.Mode,
	}
}

func (f *fakeExecutor) videos() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.seen))
	copy(out, f.seen)
	return out
}

func testConfig() Config {
	return Config{
		WorkerCount:    2,
		QueueCapacity:  8,
		SessionTimeout: 5 * time.Second,
	}
}

func TestWorkerPool_ProcessesQueuedRequests(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", testConfig(), exec, nil)

	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	for _, videoID := range []string{"vid-1", "vid-2", "vid-3"} {
		_, err := pool.Enqueue(videoID, models.DefaultOrchestratorConfig())
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return exec.executed.Load() == 3
	}, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"vid-1", "vid-2", "vid-3"}, exec.videos())
}

func TestWorkerPool_EnqueueFullQueue(t *testing.T) {
	cfg := Config{WorkerCount: 1, QueueCapacity: 1, SessionTimeout: time.Second}
	exec := &fakeExecutor{}
	// Pool never started: jobs stay in the channel.
	pool := NewWorkerPool("pod-1", cfg, exec, nil)

	_, err := pool.Enqueue("vid-1", models.DefaultOrchestratorConfig())
	require.NoError(t, err)

	_, err = pool.Enqueue("vid-2", models.DefaultOrchestratorConfig())
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestWorkerPool_EnqueueAfterStop(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", testConfig(), exec, nil)
	require.NoError(t, pool.Start(context.Background()))
	pool.Stop()

	_, err := pool.Enqueue("vid-1", models.DefaultOrchestratorConfig())
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestWorkerPool_CancelRequest(t *testing.T) {
	exec := &fakeExecutor{block: make(chan struct{})}
	pool := NewWorkerPool("pod-1", testConfig(), exec, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	req, err := pool.Enqueue("vid-1", models.DefaultOrchestratorConfig())
	require.NoError(t, err)

	// Wait until the worker has claimed the request.
	require.Eventually(t, func() bool {
		return pool.CancelRequest(req.ID)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return exec.executed.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, pool.CancelRequest("no-such-request"))
}

func TestWorkerPool_GracefulStopFinishesCurrentSession(t *testing.T) {
	exec := &fakeExecutor{delay: 100 * time.Millisecond}
	pool := NewWorkerPool("pod-1", testConfig(), exec, nil)
	require.NoError(t, pool.Start(context.Background()))

	_, err := pool.Enqueue("vid-1", models.DefaultOrchestratorConfig())
	require.NoError(t, err)

	// Let a worker claim the job, then stop: the in-flight session must
	// still finish.
	require.Eventually(t, func() bool {
		return len(exec.videos()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	pool.Stop()

	assert.Equal(t, int64(1), exec.executed.Load())
}

func TestWorkerPool_StartIsIdempotent(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", testConfig(), exec, nil)
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	health := pool.Health()
	assert.Equal(t, 2, health.TotalWorkers)
}

func TestWorkerPool_Health(t *testing.T) {
	exec := &fakeExecutor{}
	pool := NewWorkerPool("pod-1", testConfig(), exec, nil)
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	health := pool.Health()
	assert.True(t, health.IsHealthy)
	assert.Equal(t, "pod-1", health.PodID)
	assert.Equal(t, 2, health.TotalWorkers)
	assert.Equal(t, 8, health.QueueCapacity)
	assert.Len(t, health.WorkerStats, 2)
}
