package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mediapulse/patternlab/pkg/queue"
	"github.com/mediapulse/patternlab/pkg/store"
)

// submitAnalysisHandler handles POST /api/v1/analyses. The request is
// queued; processing is asynchronous.
func (s *Server) submitAnalysisHandler(c *gin.Context) {
	var req SubmitAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.sessionConfig(s.defaultConfig)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	queued, err := s.pool.Enqueue(req.VideoID, cfg)
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) || errors.Is(err, queue.ErrQueueClosed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"request_id": queued.ID,
		"video_id":   queued.VideoID,
		"mode":       cfg.Mode,
		"queued_at":  queued.EnqueuedAt,
	})
}

// listResultsHandler handles GET /api/v1/analyses. Supports ?video_id= and
// ?limit= filters.
func (s *Server) listResultsHandler(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	summaries, err := s.results.ListResults(c.Request.Context(), c.Query("video_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}
	if summaries == nil {
		summaries = []store.ResultSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"results": summaries})
}

// getResultHandler handles GET /api/v1/analyses/:id, keyed by session id.
func (s *Server) getResultHandler(c *gin.Context) {
	result, err := s.results.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
		return
	}
	c.JSON(http.StatusOK, result)
}
