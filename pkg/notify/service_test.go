package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediapulse/patternlab/pkg/models"
)

func TestService_NilReceiver(t *testing.T) {
	var s *Service

	t.Run("NotifyAnalysisStarted is no-op", func(t *testing.T) {
		ts := s.NotifyAnalysisStarted(context.Background(), "vid-1")
		assert.Empty(t, ts)
	})

	t.Run("NotifyAnalysisCompleted is no-op", func(_ *testing.T) {
		// Should not panic
		s.NotifyAnalysisCompleted(context.Background(), &models.OrchestratorResult{
			SessionID: "sess-1",
			Success:   true,
		}, "")
	})
}

func TestNewService(t *testing.T) {
	t.Run("returns nil when token empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "", Channel: "C123"})
		assert.Nil(t, svc)
	})

	t.Run("returns nil when channel empty", func(t *testing.T) {
		svc := NewService(ServiceConfig{Token: "xoxb-test", Channel: ""})
		assert.Nil(t, svc)
	})

	t.Run("returns service when configured", func(t *testing.T) {
		svc := NewService(ServiceConfig{
			Token:        "xoxb-test",
			Channel:      "C123",
			DashboardURL: "https://example.com",
		})
		assert.NotNil(t, svc)
	})
}
