package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mediapulse/patternlab/pkg/session"
	"github.com/mediapulse/patternlab/pkg/store"
)

// listSessionsHandler handles GET /api/v1/sessions: sessions currently live
// in orchestrator memory. Finished sessions move to /api/v1/analyses.
func (s *Server) listSessionsHandler(c *gin.Context) {
	sessions := s.sessions.List()
	if sessions == nil {
		sessions = []session.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// cancelSessionHandler handles POST /api/v1/sessions/:id/cancel.
func (s *Server) cancelSessionHandler(c *gin.Context) {
	sessionID := c.Param("id")
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	if !sess.Cancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "session is not in a cancellable state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "session_id": sessionID})
}

// sessionEventsHandler handles GET /api/v1/sessions/:id/events. The ?after=
// parameter is the last event id a reconnecting client has seen.
func (s *Server) sessionEventsHandler(c *gin.Context) {
	var afterID int64
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a non-negative integer"})
			return
		}
		afterID = n
	}

	evts, err := s.results.EventsSince(c.Request.Context(), c.Param("id"), afterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	if evts == nil {
		evts = []store.StoredEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}
