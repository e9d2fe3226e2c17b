// Package cleanup enforces event retention in the background.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// EventDeleter removes persisted events older than the cutoff.
type EventDeleter interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically deletes persisted session events past their TTL.
// Deletion is idempotent and safe to run from multiple pods.
type Service struct {
	eventTTL time.Duration
	interval time.Duration
	deleter  EventDeleter

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new retention service.
func NewService(eventTTL, interval time.Duration, deleter EventDeleter) *Service {
	return &Service{
		eventTTL: eventTTL,
		interval: interval,
		deleter:  deleter,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"event_ttl", s.eventTTL,
		"interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	count, err := s.deleter.DeleteEventsBefore(ctx, time.Now().Add(-s.eventTTL))
	if err != nil {
		slog.Error("Retention: event cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired events", "count", count)
	}
}
