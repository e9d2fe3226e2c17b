// Package services defines the contracts for the external analytical
// collaborators the orchestrator depends on: semantic search, statistical
// validation, and metadata lookup. Only the call/return contracts live
// here; production implementations are separate deployables.
package services

import (
	"context"

	"github.com/mediapulse/patternlab/pkg/models"
)

// SearchQuery is a single similarity-search request.
type SearchQuery struct {
	VideoID       string  `json:"video_id"`
	Query         string  `json:"query"`
	Topic         string  `json:"topic,omitempty"`
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"`
}

// SearchService returns ranked candidate videos for a query embedding plus
// structured filters.
type SearchService interface {
	SearchSimilar(ctx context.Context, q SearchQuery) ([]models.Candidate, error)
}

// ValidationRequest is one statistical validation batch.
type ValidationRequest struct {
	Hypothesis models.Hypothesis  `json:"hypothesis"`
	Candidates []models.Candidate `json:"candidates"`
}

// ValidationService checks a candidate set against a hypothesis and returns
// validated/rejected counts plus named pattern strengths with evidence.
type ValidationService interface {
	ValidateBatch(ctx context.Context, req ValidationRequest) (*models.ValidationResults, error)
}

// MetadataService looks up video context and topic enrichment.
type MetadataService interface {
	GetVideoContext(ctx context.Context, videoID string) (*models.VideoContext, error)
	GetTopics(ctx context.Context, videoID string) ([]string, error)
}
