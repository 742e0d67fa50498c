// Package handler implements the HTTP surface of the Retrieval Pipeline
// (spec §6): request binding, response shaping, and error-status mapping
// around the pipeline, conversation store, and conversational filter.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/engine"
	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/pipeline"
	"ai-agent-go/internal/types"
)

// SearchHandler serves the Search endpoint (spec §6) over the Retrieval
// Pipeline.
type SearchHandler struct {
	pipeline *pipeline.Pipeline
	hybrid   *engine.Hybrid // optional, only used to report hybridWeights
}

// NewSearchHandler builds a SearchHandler over p. p may be nil if the
// pipeline failed to initialize at startup; requests then fail with the
// dedicated pipeline-not-ready error rather than a panic. hybrid may be
// nil; it is only consulted to populate metadata.hybridWeights.
func NewSearchHandler(p *pipeline.Pipeline, hybrid *engine.Hybrid) *SearchHandler {
	return &SearchHandler{pipeline: p, hybrid: hybrid}
}

type searchRequest struct {
	Query      string `json:"query"`
	SearchType string `json:"searchType"`
	TopK       int    `json:"topK"`
}

type searchMetadata struct {
	TraceID       string          `json:"traceId"`
	HybridWeights *hybridWeightsJ `json:"hybridWeights,omitempty"`
}

type hybridWeightsJ struct {
	Vector  float64 `json:"vector"`
	Keyword float64 `json:"keyword"`
}

type searchResponse struct {
	Query       string                     `json:"query"`
	SearchType  string                     `json:"searchType"`
	TopK        int                        `json:"topK"`
	ResultCount int                        `json:"resultCount"`
	DurationMs  int64                      `json:"duration_ms"`
	Results     []types.SearchResultItem   `json:"results"`
	Metadata    searchMetadata             `json:"metadata"`
}

// HandleSearch serves POST /api/v1/search.
func (h *SearchHandler) HandleSearch(c context.Context, ctx *app.RequestContext) {
	var req searchRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "malformed request body"})
		return
	}
	if req.Query == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "query must not be empty"})
		return
	}
	switch types.SearchType(req.SearchType) {
	case types.SearchKeyword, types.SearchVector, types.SearchHybrid:
	default:
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "searchType must be one of keyword, vector, hybrid"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}

	if h.pipeline == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": pipeline.ErrNotReady.Error()})
		return
	}

	start := time.Now()
	searchType := types.SearchType(req.SearchType)
	results, _, err := h.pipeline.Search(c, req.Query, searchType, req.TopK)
	duration := time.Since(start)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotReady) {
			ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": err.Error()})
			return
		}
		log := logger.Component("api.search")
		log.Error().Err(err).Str("query", req.Query).Msg("search failed")
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	meta := searchMetadata{TraceID: trace.SpanContextFromContext(c).TraceID().String()}
	if searchType == types.SearchHybrid && h.hybrid != nil {
		v, k := h.hybrid.CurrentWeights()
		meta.HybridWeights = &hybridWeightsJ{Vector: v, Keyword: k}
	}

	ctx.JSON(consts.StatusOK, searchResponse{
		Query:       req.Query,
		SearchType:  req.SearchType,
		TopK:        req.TopK,
		ResultCount: len(results),
		DurationMs:  duration.Milliseconds(),
		Results:     results,
		Metadata:    meta,
	})
}
