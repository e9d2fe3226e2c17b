package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// Service handles Slack notification delivery.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyAnalysisStarted sends a "processing started" notification and
// returns the message timestamp so the terminal notification can thread
// under it. Fail-open: errors are logged, never returned.
func (s *Service) NotifyAnalysisStarted(ctx context.Context, videoID string) string {
	if s == nil {
		return ""
	}

	blocks := BuildStartedMessage(videoID, s.dashboardURL)
	ts, err := s.client.PostMessage(ctx, blocks, "", 5*time.Second)
	if err != nil {
		s.logger.Error("Failed to send Slack start notification",
			"video_id", videoID,
			"error", err)
		return ""
	}
	return ts
}

// NotifyAnalysisCompleted sends a terminal result notification, threaded
// under the start message when threadTS is set.
// Fail-open: errors are logged, never returned.
func (s *Service) NotifyAnalysisCompleted(ctx context.Context, result *models.OrchestratorResult, threadTS string) {
	if s == nil || result == nil {
		return
	}

	blocks := BuildResultMessage(result, s.dashboardURL)
	if _, err := s.client.PostMessage(ctx, blocks, threadTS, 10*time.Second); err != nil {
		s.logger.Error("Failed to send Slack result notification",
			"session_id", result.SessionID,
			"success", result.Success,
			"error", err)
	}
}
