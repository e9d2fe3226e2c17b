// Package api exposes the HTTP and WebSocket surface: analysis submission,
// session inspection, result retrieval, event catchup, and health.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediapulse/patternlab/pkg/events"
	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/queue"
	"github.com/mediapulse/patternlab/pkg/session"
	"github.com/mediapulse/patternlab/pkg/store"
)

// ResultReader is the persistence surface the API reads from.
type ResultReader interface {
	GetResult(ctx context.Context, sessionID string) (*models.OrchestratorResult, error)
	ListResults(ctx context.Context, videoID string, limit int) ([]store.ResultSummary, error)
	EventsSince(ctx context.Context, sessionID string, afterID int64) ([]store.StoredEvent, error)
}

// Deps are the server's collaborators. Pool, Sessions, and Results are
// required; ConnManager and DB are optional (the matching endpoints degrade).
type Deps struct {
	Pool        *queue.WorkerPool
	Sessions    *session.Manager
	Results     ResultReader
	ConnManager *events.ConnectionManager
	DB          *sql.DB

	// DefaultConfig is the baseline session configuration; submissions may
	// override selected fields.
	DefaultConfig models.OrchestratorConfig

	// AllowedWSOrigins are extra origin patterns accepted on the WebSocket
	// endpoint, in addition to same-origin.
	AllowedWSOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	pool             *queue.WorkerPool
	sessions         *session.Manager
	results          ResultReader
	connManager      *events.ConnectionManager
	db               *sql.DB
	defaultConfig    models.OrchestratorConfig
	allowedWSOrigins []string

	httpServer *http.Server
}

// NewServer creates the API server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Pool == nil || deps.Sessions == nil || deps.Results == nil {
		return nil, fmt.Errorf("api: pool, sessions, and results are required")
	}
	return &Server{
		pool:             deps.Pool,
		sessions:         deps.Sessions,
		results:          deps.Results,
		connManager:      deps.ConnManager,
		db:               deps.DB,
		defaultConfig:    deps.DefaultConfig,
		allowedWSOrigins: deps.AllowedWSOrigins,
	}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery(), securityHeaders())

	router.GET("/health", s.healthHandler)
	router.GET("/ws", s.wsHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyses", s.submitAnalysisHandler)
		v1.GET("/analyses", s.listResultsHandler)
		v1.GET("/analyses/:id", s.getResultHandler)

		v1.GET("/sessions", s.listSessionsHandler)
		v1.GET("/sessions/:id", s.getSessionHandler)
		v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
		v1.GET("/sessions/:id/events", s.sessionEventsHandler)
	}

	return router
}

// Start begins serving on the given address. Blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("API server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
