package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/queue"
	"github.com/mediapulse/patternlab/pkg/session"
	"github.com/mediapulse/patternlab/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeResults is an in-memory ResultReader.
type fakeResults struct {
	results map[string]*models.OrchestratorResult
	events  map[string][]store.StoredEvent
	listErr error
}

func newFakeResults() *fakeResults {
	return &fakeResults{
		results: make(map[string]*models.OrchestratorResult),
		events:  make(map[string][]store.StoredEvent),
	}
}

func (f *fakeResults) GetResult(_ context.Context, sessionID string) (*models.OrchestratorResult, error) {
	if r, ok := f.results[sessionID]; ok {
		return r, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeResults) ListResults(_ context.Context, videoID string, limit int) ([]store.ResultSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.ResultSummary
	for id, r := range f.results {
		if videoID != "" && r.VideoID != videoID {
			continue
		}
		out = append(out, store.ResultSummary{SessionID: id, VideoID: r.VideoID, Success: r.Success})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeResults) EventsSince(_ context.Context, sessionID string, afterID int64) ([]store.StoredEvent, error) {
	var out []store.StoredEvent
	for _, ev := range f.events[sessionID] {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(_ context.Context, req *queue.AnalysisRequest) *models.OrchestratorResult {
	return &models.OrchestratorResult{VideoID: req.VideoID, Success: true, Mode: req.Config.Mode}
}

type fixture struct {
	server   *Server
	router   *gin.Engine
	sessions *session.Manager
	results  *fakeResults
	pool     *queue.WorkerPool
}

// newFixture builds a server over an unstarted pool so queued requests stay
// queued during the test.
func newFixture(t *testing.T, queueCapacity int) *fixture {
	t.Helper()

	pool := queue.NewWorkerPool("test-pod", queue.Config{
		WorkerCount:    1,
		QueueCapacity:  queueCapacity,
		SessionTimeout: time.Minute,
	}, noopExecutor{}, nil)
	sessions := session.NewManager()
	results := newFakeResults()

	server, err := NewServer(Deps{
		Pool:          pool,
		Sessions:      sessions,
		Results:       results,
		DefaultConfig: models.DefaultOrchestratorConfig(),
	})
	require.NoError(t, err)

	return &fixture{
		server:   server,
		router:   server.Router(),
		sessions: sessions,
		results:  results,
		pool:     pool,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestSubmitAnalysis(t *testing.T) {
	t.Run("valid request is accepted", func(t *testing.T) {
		f := newFixture(t, 8)
		rec := f.do(http.MethodPost, "/api/v1/analyses", `{"video_id":"vid-1"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		body := decodeBody(t, rec)
		assert.NotEmpty(t, body["request_id"])
		assert.Equal(t, "vid-1", body["video_id"])
		assert.Equal(t, string(models.ModeAgentic), body["mode"])
	})

	t.Run("missing video_id", func(t *testing.T) {
		f := newFixture(t, 8)
		rec := f.do(http.MethodPost, "/api/v1/analyses", `{"mode":"agentic"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid mode", func(t *testing.T) {
		f := newFixture(t, 8)
		rec := f.do(http.MethodPost, "/api/v1/analyses", `{"video_id":"vid-1","mode":"turbo"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("queue full", func(t *testing.T) {
		f := newFixture(t, 1)
		require.Equal(t, http.StatusAccepted,
			f.do(http.MethodPost, "/api/v1/analyses", `{"video_id":"vid-1"}`).Code)
		rec := f.do(http.MethodPost, "/api/v1/analyses", `{"video_id":"vid-2"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("budget overrides are clamped to server caps", func(t *testing.T) {
		f := newFixture(t, 8)
		rec := f.do(http.MethodPost, "/api/v1/analyses",
			`{"video_id":"vid-1","max_tokens":999999999}`)
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestGetResult(t *testing.T) {
	f := newFixture(t, 8)
	f.results.results["sess-1"] = &models.OrchestratorResult{
		SessionID: "sess-1", VideoID: "vid-1", Success: true,
	}

	t.Run("found", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/analyses/sess-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "vid-1", decodeBody(t, rec)["video_id"])
	})

	t.Run("not found", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/analyses/no-such", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListResults(t *testing.T) {
	f := newFixture(t, 8)
	f.results.results["sess-1"] = &models.OrchestratorResult{SessionID: "sess-1", VideoID: "vid-1"}
	f.results.results["sess-2"] = &models.OrchestratorResult{SessionID: "sess-2", VideoID: "vid-2"}

	t.Run("lists all", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/analyses", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["results"], 2)
	})

	t.Run("filters by video", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/analyses?video_id=vid-1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["results"], 1)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/analyses?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty result set is an array", func(t *testing.T) {
		f := newFixture(t, 8)
		rec := f.do(http.MethodGet, "/api/v1/analyses", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
	})
}

func TestSessionEndpoints(t *testing.T) {
	t.Run("list live sessions", func(t *testing.T) {
		f := newFixture(t, 8)
		_, err := f.sessions.Create("vid-1", models.DefaultOrchestratorConfig())
		require.NoError(t, err)

		rec := f.do(http.MethodGet, "/api/v1/sessions", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["sessions"], 1)
	})

	t.Run("get session not found", func(t *testing.T) {
		f := newFixture(t, 8)
		rec := f.do(http.MethodGet, "/api/v1/sessions/no-such", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cancel running session", func(t *testing.T) {
		f := newFixture(t, 8)
		sess, err := f.sessions.Create("vid-1", models.DefaultOrchestratorConfig())
		require.NoError(t, err)
		cancelled := false
		sess.SetCancelFunc(func() { cancelled = true })

		rec := f.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/cancel", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, cancelled)
	})

	t.Run("cancel session without cancel func conflicts", func(t *testing.T) {
		f := newFixture(t, 8)
		sess, err := f.sessions.Create("vid-1", models.DefaultOrchestratorConfig())
		require.NoError(t, err)

		rec := f.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/cancel", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestSessionEvents(t *testing.T) {
	f := newFixture(t, 8)
	f.results.events["sess-1"] = []store.StoredEvent{
		{ID: 1, SessionID: "sess-1", Payload: json.RawMessage(`{"type":"session.status"}`)},
		{ID: 2, SessionID: "sess-1", Payload: json.RawMessage(`{"type":"turn.started"}`)},
	}

	t.Run("all events", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/sessions/sess-1/events", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["events"], 2)
	})

	t.Run("catchup after id", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/sessions/sess-1/events?after=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody(t, rec)["events"], 1)
	})

	t.Run("invalid after", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/v1/sessions/sess-1/events?after=abc", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 8)
	rec := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["version"])
	assert.NotNil(t, body["queue"])
}

func TestWSUnavailableWithoutManager(t *testing.T) {
	f := newFixture(t, 8)
	rec := f.do(http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	f := newFixture(t, 8)
	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
