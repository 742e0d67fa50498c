// Package pipeline implements the Retrieval Pipeline (spec §4.H): it
// dispatches a query to the keyword, vector, or hybrid engine, optionally
// runs the LLM re-ranker over the results, and truncates to the
// caller-requested top-K.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/constants"
	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/rerank"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var pipelineTracer = otel.Tracer("ai-agent-go/pipeline")

// ErrNotReady is returned by Search when the pipeline's backing engines
// were never successfully constructed (e.g. the document store was
// unreachable at startup). The service keeps running; only searches
// fail (spec §6's exit policy).
var ErrNotReady = fmt.Errorf("pipeline: not initialized")

// Searcher is the D/E/F search(query, k) contract the pipeline dispatches
// to.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error)
}

// Reranker is the rerank_and_filter contract component G exposes.
type Reranker interface {
	RerankAndFilter(ctx context.Context, query string, candidates []types.SearchResultItem) ([]types.SearchResultItem, rerank.Analysis, error)
}

// Cache is the short-TTL result cache and distributed dedup lock a Search
// call uses to guard the D/E/F fan-out and the G re-rank call against
// duplicate concurrent identical queries. Pipeline never calls a method on
// a nil Cache; a nil Cache just disables caching and every search runs
// uncached.
type Cache interface {
	GetResults(ctx context.Context, query string, searchType types.SearchType, k int) ([]types.SearchResultItem, error)
	SetResults(ctx context.Context, query string, searchType types.SearchType, k int, items []types.SearchResultItem) error
	AcquireLock(ctx context.Context, query string, searchType types.SearchType, k int) (string, error)
	ReleaseLock(ctx context.Context, query string, searchType types.SearchType, k int, lockValue string) (bool, error)
}

// Pipeline orchestrates D/E/F -> G and the final top-K truncation.
type Pipeline struct {
	keyword  Searcher
	vector   Searcher
	hybrid   Searcher
	reranker Reranker
	cache    Cache
	cfg      config.RerankConfig
}

// New builds a Pipeline. Any of keyword/vector/hybrid/reranker/cache may
// be nil if the corresponding backing collaborator could not be
// constructed; Search returns ErrNotReady for a search_type whose engine
// is nil, and runs uncached when cache is nil.
func New(keyword, vector, hybrid Searcher, reranker Reranker, cache Cache, cfg config.RerankConfig) *Pipeline {
	return &Pipeline{keyword: keyword, vector: vector, hybrid: hybrid, reranker: reranker, cache: cache, cfg: cfg}
}

// Search dispatches query to the engine named by searchType, optionally
// reranks, and returns at most k results sorted by effective score
// descending. analysis is the re-ranker's summary/per-candidate verdict
// record when G ran, or nil otherwise.
func (p *Pipeline) Search(ctx context.Context, query string, searchType types.SearchType, k int) ([]types.SearchResultItem, *rerank.Analysis, error) {
	ctx, span := pipelineTracer.Start(ctx, "Pipeline.Search", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("pipeline.query", tracing.SafeAttributeValue("pipeline.query", query, tracing.DefaultMaxLength)),
		attribute.String("pipeline.search_type", string(searchType)),
		attribute.Int("pipeline.k", k),
	)
	log := logger.Component("pipeline")

	engine, err := p.engineFor(searchType)
	if err != nil {
		return nil, nil, err
	}

	if p.cache != nil {
		if cached, err := p.cache.GetResults(ctx, query, searchType, k); err == nil {
			span.SetAttributes(attribute.Bool("pipeline.cache_hit", true))
			log.Debug().Str("search_type", string(searchType)).Msg("cache hit, skipping D/E/F and rerank")
			return cached, nil, nil
		}
	}

	// Cache miss: try to become the single caller that actually runs the
	// fan-out and rerank for this signature. holdsLock tracks whether we
	// should populate the cache and release the lock on the way out.
	holdsLock := false
	var lockValue string
	if p.cache != nil {
		lockValue, err = p.cache.AcquireLock(ctx, query, searchType, k)
		if err != nil {
			log.Warn().Err(err).Msg("acquire search lock failed, continuing without dedup")
		} else if lockValue == "" {
			if cached, ok := p.pollForResults(ctx, query, searchType, k, log); ok {
				span.SetAttributes(attribute.Bool("pipeline.cache_hit", true))
				return cached, nil, nil
			}
			log.Debug().Str("search_type", string(searchType)).Msg("search already in flight elsewhere, running uncached copy")
		} else {
			holdsLock = true
			defer func() {
				if released, relErr := p.cache.ReleaseLock(ctx, query, searchType, k, lockValue); relErr != nil || !released {
					log.Warn().Err(relErr).Bool("released", released).Msg("release search lock failed")
				}
			}()
		}
	}

	retrievalLimit := k
	rerankEnabled := p.cfg.Enabled && p.reranker != nil
	if rerankEnabled {
		retrievalLimit = p.cfg.RetrievalTopK
		if retrievalLimit < k {
			retrievalLimit = k
		}
	}

	results, err := engine.Search(ctx, query, retrievalLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: %s search failed: %w", searchType, err)
	}

	var analysis *rerank.Analysis
	if rerankEnabled && len(results) > 0 {
		reranked, a, err := p.reranker.RerankAndFilter(ctx, query, results)
		if err != nil {
			log.Warn().Err(err).Msg("rerank stage returned an error, keeping pre-rerank results")
		} else {
			results = reranked
			analysis = &a
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}

	if holdsLock {
		if err := p.cache.SetResults(ctx, query, searchType, k, results); err != nil {
			log.Warn().Err(err).Msg("caching search results failed")
		}
	}

	log.Debug().Int("result_count", len(results)).Bool("reranked", rerankEnabled).Msg("pipeline search complete")
	return results, analysis, nil
}

// pollForResults is used when another caller holds the search lock for
// this signature: rather than running a redundant D/E/F/G pass
// immediately, wait briefly for the lock holder to populate the cache.
func (p *Pipeline) pollForResults(ctx context.Context, query string, searchType types.SearchType, k int, log zerolog.Logger) ([]types.SearchResultItem, bool) {
	for i := 0; i < constants.SearchLockPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(constants.SearchLockPollInterval):
		}
		if cached, err := p.cache.GetResults(ctx, query, searchType, k); err == nil {
			return cached, true
		}
	}
	return nil, false
}

func (p *Pipeline) engineFor(searchType types.SearchType) (Searcher, error) {
	var engine Searcher
	switch searchType {
	case types.SearchKeyword:
		engine = p.keyword
	case types.SearchVector:
		engine = p.vector
	case types.SearchHybrid:
		engine = p.hybrid
	default:
		return nil, fmt.Errorf("pipeline: unknown search type %q", searchType)
	}
	if engine == nil {
		return nil, ErrNotReady
	}
	return engine, nil
}
