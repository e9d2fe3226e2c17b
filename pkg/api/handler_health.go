package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediapulse/patternlab/pkg/store"
	"github.com/mediapulse/patternlab/pkg/version"
)

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"version": version.Full(),
		"queue":   s.pool.Health(),
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := store.Health(ctx, s.db)
		resp["database"] = dbHealth
		if err != nil {
			resp["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}
