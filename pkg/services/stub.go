package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

// StubSearchService returns deterministic candidates derived from the query.
// Used for wiring and tests when the real search deployment is absent.
type StubSearchService struct {
	// Candidates overrides the generated set when non-nil.
	Candidates []models.Candidate
	// Err forces every call to fail.
	Err error
}

// SearchSimilar implements SearchService.
func (s *StubSearchService) SearchSimilar(_ context.Context, q SearchQuery) ([]models.Candidate, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Candidates != nil {
		return s.Candidates, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	out := make([]models.Candidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, models.Candidate{
			VideoID:              fmt.Sprintf("%s-match-%d", q.VideoID, i),
			Title:                fmt.Sprintf("candidate %d for %q", i, q.Query),
			Similarity:           0.95 - float64(i)*0.03,
			Views:                int64(100_000 - i*5_000),
			OverperformanceRatio: 2.5 - float64(i)*0.1,
			Topic:                q.Topic,
		})
	}
	return out, nil
}

// StubValidationService validates candidates by similarity threshold and
// reports a single pattern whose strength is the validated fraction.
type StubValidationService struct {
	Threshold float64
	Err       error
}

// ValidateBatch implements ValidationService.
func (s *StubValidationService) ValidateBatch(_ context.Context, req ValidationRequest) (*models.ValidationResults, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	threshold := s.Threshold
	if threshold == 0 {
		threshold = 0.8
	}

	var validated, rejected int
	var evidence []string
	for _, c := range req.Candidates {
		if c.Similarity >= threshold {
			validated++
			if len(evidence) < 3 {
				evidence = append(evidence, c.VideoID)
			}
		} else {
			rejected++
		}
	}

	result := &models.ValidationResults{Validated: validated, Rejected: rejected}
	if total := validated + rejected; total > 0 && validated > 0 {
		result.Patterns = []models.Pattern{{
			Name:        "similarity-cluster",
			Strength:    float64(validated) / float64(total),
			Description: req.Hypothesis.Statement,
			Evidence:    evidence,
		}}
	}
	return result, nil
}

// StubMetadataService serves canned video context.
type StubMetadataService struct {
	Contexts map[string]*models.VideoContext
	Err      error
}

// GetVideoContext implements MetadataService.
func (s *StubMetadataService) GetVideoContext(_ context.Context, videoID string) (*models.VideoContext, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if ctx, ok := s.Contexts[videoID]; ok {
		return ctx, nil
	}
	return &models.VideoContext{
		VideoID:              videoID,
		Title:                "untitled " + videoID,
		ChannelID:            "channel-" + videoID,
		PublishedAt:          time.Now().Add(-30 * 24 * time.Hour),
		Views:                250_000,
		BaselineViews:        50_000,
		OverperformanceRatio: 5.0,
		Topics:               []string{"technology", "tutorial"},
	}, nil
}

// GetTopics implements MetadataService.
func (s *StubMetadataService) GetTopics(ctx context.Context, videoID string) ([]string, error) {
	vc, err := s.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return vc.Topics, nil
}
