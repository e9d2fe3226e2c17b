package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
	"github.com/mediapulse/patternlab/pkg/services"
	"github.com/mediapulse/patternlab/pkg/tool"
)

// Builtin tool names. The naming convention is load-bearing: "search"
// prefixed tools count against the fanout dimension, "validat" tools
// against the validation dimension, and "comprehensive" tools are costed at
// the large tier.
const (
	ToolGetVideoContext               = "get-video-context"
	ToolGetChannelBaseline            = "get-channel-baseline"
	ToolSemanticSearchSimilar         = "semantic-search-similar"
	ToolSearchOutliers                = "search-outliers"
	ToolEnrichTopicMetadata           = "enrich-topic-metadata"
	ToolValidatePatternStatistical    = "validate-pattern-statistical"
	ToolComprehensivePerformanceStudy = "comprehensive-performance-analysis"
)

// ChannelBaseline is the get-channel-baseline tool's payload.
type ChannelBaseline struct {
	ChannelID     string `json:"channel_id"`
	BaselineViews int64  `json:"baseline_views"`
}

// ToolServices are the external collaborators the builtin tools call.
type ToolServices struct {
	Search     services.SearchService
	Validation services.ValidationService
	Metadata   services.MetadataService
}

// RegisterBuiltins registers the standard analysis toolset against the given
// collaborators.
func RegisterBuiltins(reg *tool.Registry, svcs ToolServices) error {
	defs := []tool.Definition{
		{
			Name:        ToolGetVideoContext,
			Category:    models.CategoryContext,
			Description: "Fetch the metadata snapshot for the video under analysis.",
			Params: []tool.ParamSpec{
				{Name: "video_id", Type: tool.ParamString, Required: true},
			},
			Handler:          videoContextHandler(svcs.Metadata),
			ParallelSafe:     true,
			Cacheable:        true,
			CacheTTL:         5 * time.Minute,
			EstimatedLatency: 150 * time.Millisecond,
			EstimatedTokens:  200,
			EstimatedCost:    0.0001,
		},
		{
			Name:        ToolGetChannelBaseline,
			Category:    models.CategoryPerformance,
			Description: "Fetch the channel's baseline view performance.",
			Params: []tool.ParamSpec{
				{Name: "video_id", Type: tool.ParamString, Required: true},
			},
			Handler:          channelBaselineHandler(svcs.Metadata),
			ParallelSafe:     true,
			Cacheable:        true,
			CacheTTL:         15 * time.Minute,
			EstimatedLatency: 150 * time.Millisecond,
			EstimatedTokens:  100,
			EstimatedCost:    0.00005,
		},
		{
			Name:        ToolSemanticSearchSimilar,
			Category:    models.CategorySemantic,
			Description: "Rank candidate videos by semantic similarity to a query.",
			Params: []tool.ParamSpec{
				{Name: "query", Type: tool.ParamString, Required: true},
				{Name: "video_id", Type: tool.ParamString},
				{Name: "topic", Type: tool.ParamString},
				{Name: "limit", Type: tool.ParamInteger},
			},
			Handler:          similarSearchHandler(svcs.Search),
			ParallelSafe:     true,
			EstimatedLatency: 800 * time.Millisecond,
			EstimatedTokens:  1200,
			EstimatedCost:    0.0006,
		},
		{
			Name:        ToolSearchOutliers,
			Category:    models.CategorySearch,
			Description: "Find statistically overperforming videos in a topic.",
			Params: []tool.ParamSpec{
				{Name: "topic", Type: tool.ParamString},
				{Name: "video_id", Type: tool.ParamString},
			},
			Handler:          outlierSearchHandler(svcs.Search),
			ParallelSafe:     true,
			EstimatedLatency: 800 * time.Millisecond,
			EstimatedTokens:  1000,
			EstimatedCost:    0.0005,
		},
		{
			Name:        ToolEnrichTopicMetadata,
			Category:    models.CategoryContext,
			Description: "Look up topic labels for a video.",
			Params: []tool.ParamSpec{
				{Name: "video_id", Type: tool.ParamString, Required: true},
			},
			Handler:          topicEnrichmentHandler(svcs.Metadata),
			ParallelSafe:     true,
			Cacheable:        true,
			CacheTTL:         15 * time.Minute,
			EstimatedLatency: 200 * time.Millisecond,
			EstimatedTokens:  150,
			EstimatedCost:    0.000075,
		},
		{
			Name:        ToolValidatePatternStatistical,
			Category:    models.CategoryComposite,
			Description: "Statistically validate a hypothesis against a candidate set.",
			Params: []tool.ParamSpec{
				{Name: "hypothesis", Type: tool.ParamObject, Required: true},
				{Name: "candidates", Type: tool.ParamArray, Required: true},
			},
			Handler:          validationHandler(svcs.Validation),
			EstimatedLatency: 2 * time.Second,
			EstimatedTokens:  2500,
			EstimatedCost:    0.0075,
		},
		{
			Name:        ToolComprehensivePerformanceStudy,
			Category:    models.CategoryPerformance,
			Description: "Full performance study combining context, baseline, and outlier comparison.",
			Params: []tool.ParamSpec{
				{Name: "video_id", Type: tool.ParamString, Required: true},
			},
			Handler:          comprehensiveHandler(svcs.Metadata, svcs.Search),
			EstimatedLatency: 5 * time.Second,
			EstimatedTokens:  4000,
			EstimatedCost:    0.06,
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return fmt.Errorf("register builtin tools: %w", err)
		}
	}
	return nil
}

func videoContextHandler(meta services.MetadataService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		vc, err := meta.GetVideoContext(ctx, params["video_id"].(string))
		if err != nil {
			return nil, err
		}
		return &models.ToolResponse{Success: true, Data: vc}, nil
	}
}

func channelBaselineHandler(meta services.MetadataService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		vc, err := meta.GetVideoContext(ctx, params["video_id"].(string))
		if err != nil {
			return nil, err
		}
		return &models.ToolResponse{Success: true, Data: &ChannelBaseline{
			ChannelID:     vc.ChannelID,
			BaselineViews: vc.BaselineViews,
		}}, nil
	}
}

func similarSearchHandler(search services.SearchService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		q := services.SearchQuery{
			Query: params["query"].(string),
			Limit: intParam(params, "limit", 10),
		}
		if vid, ok := params["video_id"].(string); ok {
			q.VideoID = vid
		}
		if topic, ok := params["topic"].(string); ok {
			q.Topic = topic
		}
		candidates, err := search.SearchSimilar(ctx, q)
		if err != nil {
			return nil, err
		}
		return &models.ToolResponse{Success: true, Data: candidates}, nil
	}
}

func outlierSearchHandler(search services.SearchService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		q := services.SearchQuery{
			Query: "statistical outliers",
			Limit: 10,
		}
		if vid, ok := params["video_id"].(string); ok {
			q.VideoID = vid
		}
		if topic, ok := params["topic"].(string); ok {
			q.Topic = topic
		}
		candidates, err := search.SearchSimilar(ctx, q)
		if err != nil {
			return nil, err
		}
		// Only keep genuinely overperforming candidates.
		var outliers []models.Candidate
		for _, c := range candidates {
			if c.OverperformanceRatio >= 2.0 {
				outliers = append(outliers, c)
			}
		}
		return &models.ToolResponse{Success: true, Data: outliers}, nil
	}
}

func topicEnrichmentHandler(meta services.MetadataService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		topics, err := meta.GetTopics(ctx, params["video_id"].(string))
		if err != nil {
			return nil, err
		}
		return &models.ToolResponse{Success: true, Data: topics}, nil
	}
}

func validationHandler(validation services.ValidationService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		var req services.ValidationRequest
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		results, err := validation.ValidateBatch(ctx, req)
		if err != nil {
			return nil, err
		}
		return &models.ToolResponse{Success: true, Data: results}, nil
	}
}

func comprehensiveHandler(meta services.MetadataService, search services.SearchService) tool.Handler {
	return func(ctx context.Context, params map[string]any, _ tool.CallContext) (*models.ToolResponse, error) {
		videoID := params["video_id"].(string)
		vc, err := meta.GetVideoContext(ctx, videoID)
		if err != nil {
			return nil, err
		}
		peers, err := search.SearchSimilar(ctx, services.SearchQuery{
			VideoID: videoID,
			Query:   "channel peers",
			Topic:   firstOrEmpty(vc.Topics),
			Limit:   20,
		})
		if err != nil {
			return nil, err
		}

		var peerRatioSum float64
		for _, p := range peers {
			peerRatioSum += p.OverperformanceRatio
		}
		peerMean := 0.0
		if len(peers) > 0 {
			peerMean = peerRatioSum / float64(len(peers))
		}
		return &models.ToolResponse{Success: true, Data: map[string]any{
			"video_context":         vc,
			"peer_count":            len(peers),
			"peer_mean_ratio":       peerMean,
			"ratio_vs_peers":        vc.OverperformanceRatio - peerMean,
			"baseline_multiplier":   vc.OverperformanceRatio,
			"analysis_generated_at": time.Now().Format(time.RFC3339),
		}}, nil
	}
}

// intParam reads an integer parameter, accepting the float64 shape JSON
// decoding produces.
func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// decodeParams converts a validated params map into a typed request.
func decodeParams(params map[string]any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
