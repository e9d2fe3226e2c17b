package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
)

func okHandler(data any) Handler {
	return func(ctx context.Context, params map[string]any, call CallContext) (*models.ToolResponse, error) {
		return &models.ToolResponse{Success: true, Data: data}, nil
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name:     "get-video-context",
		Category: models.CategoryContext,
		Handler:  okHandler("ctx"),
	}))

	def, ok := r.Get("get-video-context")
	require.True(t, ok)
	assert.Equal(t, models.CategoryContext, def.Category)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAndInvalid(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "a", Handler: okHandler(nil)}))

	assert.Error(t, r.Register(Definition{Name: "a", Handler: okHandler(nil)}))
	assert.Error(t, r.Register(Definition{Name: "", Handler: okHandler(nil)}))
	assert.Error(t, r.Register(Definition{Name: "no-handler"}))
}

func TestRegistry_ListByCategory(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "b-search", Category: models.CategorySearch, Handler: okHandler(nil)}))
	require.NoError(t, r.Register(Definition{Name: "a-search", Category: models.CategorySearch, Handler: okHandler(nil)}))
	require.NoError(t, r.Register(Definition{Name: "enrich", Category: models.CategorySemantic, Handler: okHandler(nil)}))

	searches := r.List(models.CategorySearch)
	require.Len(t, searches, 2)
	assert.Equal(t, "a-search", searches[0].Name)
	assert.Equal(t, "b-search", searches[1].Name)

	assert.Len(t, r.List(""), 3)
}

func TestRegistry_ParallelSafe(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "safe", ParallelSafe: true, Handler: okHandler(nil)}))
	require.NoError(t, r.Register(Definition{Name: "unsafe", Handler: okHandler(nil)}))

	safe := r.ParallelSafe()
	require.Len(t, safe, 1)
	assert.Equal(t, "safe", safe[0].Name)
}

func TestRegistry_EstimateCost(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "a", EstimatedCost: 0.01, Handler: okHandler(nil)}))
	require.NoError(t, r.Register(Definition{Name: "b", EstimatedCost: 0.02, Handler: okHandler(nil)}))

	assert.InDelta(t, 0.03, r.EstimateCost([]string{"a", "b", "unknown"}), 1e-9)
}

func TestCache_HitMissAndTTL(t *testing.T) {
	c := NewCache()
	params := map[string]any{"video_id": "v1", "limit": 10}
	resp := &models.ToolResponse{Success: true, Data: "result"}

	_, ok := c.Get("search", params)
	assert.False(t, ok)

	c.Set("search", params, resp, 50*time.Millisecond)
	got, ok := c.Get("search", params)
	require.True(t, ok)
	assert.True(t, got.Metadata.Cached)
	assert.Equal(t, "result", got.Data)

	// Equivalent maps hit the same key regardless of insertion order.
	got, ok = c.Get("search", map[string]any{"limit": 10, "video_id": "v1"})
	require.True(t, ok)
	assert.Equal(t, "result", got.Data)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("search", params)
	assert.False(t, ok)
}

func TestCache_DistinctParamsDistinctEntries(t *testing.T) {
	c := NewCache()
	c.Set("search", map[string]any{"q": "a"}, &models.ToolResponse{Success: true, Data: 1}, time.Minute)
	c.Set("search", map[string]any{"q": "b"}, &models.ToolResponse{Success: true, Data: 2}, time.Minute)

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get("search", map[string]any{"q": "b"})
	require.True(t, ok)
	assert.Equal(t, 2, got.Data)
}
