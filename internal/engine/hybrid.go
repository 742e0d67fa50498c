package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/tracing"
	"ai-agent-go/internal/types"
)

var hybridTracer = otel.Tracer("ai-agent-go/engine/hybrid")

// Searcher is the polymorphic search(query, k) contract the Hybrid
// Engine fans out to. Keyword and Vector both satisfy it; tests can
// supply a stub.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error)
}

// weights is an immutable snapshot of {w_v, w_k} so a search that reads
// it once at dispatch is unaffected by a concurrent updateWeights call
// (spec §9: updateWeights is not synchronized against in-flight
// searches, and that is intentional, not a bug to fix here).
type weights struct {
	vector  float64
	keyword float64
}

// Hybrid fans D and E out concurrently and merges their results by
// document identity (component F).
type Hybrid struct {
	keyword Searcher
	vector  Searcher

	current atomic.Pointer[weights]
}

// NewHybrid builds a Hybrid engine over a keyword and a vector searcher
// with the given initial fusion weights.
func NewHybrid(keyword, vector Searcher, vectorWeight, keywordWeight float64) *Hybrid {
	h := &Hybrid{keyword: keyword, vector: vector}
	h.current.Store(&weights{vector: vectorWeight, keyword: keywordWeight})
	return h
}

// UpdateWeights replaces the fusion weights used by subsequent searches.
// It has no synchronization with in-flight Search calls, which each
// already captured their own snapshot at dispatch (spec §9, last writer
// wins for subsequent searches).
func (h *Hybrid) UpdateWeights(vectorWeight, keywordWeight float64) {
	h.current.Store(&weights{vector: vectorWeight, keyword: keywordWeight})
}

// CurrentWeights returns the fusion weights a search dispatched right
// now would use.
func (h *Hybrid) CurrentWeights() (vector, keyword float64) {
	w := h.current.Load()
	return w.vector, w.keyword
}

// Search fetches 3k candidates from each of the keyword and vector
// engines concurrently, merges them keyed by human name (a known wart,
// see DESIGN.md), combines scores under the weights snapshotted at
// dispatch, and returns the top k.
func (h *Hybrid) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	ctx, span := hybridTracer.Start(ctx, "Hybrid.Search", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	log := logger.Component("engine.hybrid")

	if limit <= 0 {
		return nil, nil
	}
	w := h.current.Load()
	span.SetAttributes(
		attribute.String("engine.query", tracing.SafeAttributeValue("engine.query", query, tracing.DefaultMaxLength)),
		attribute.Int("engine.k", limit),
		attribute.Float64("engine.w_v", w.vector),
		attribute.Float64("engine.w_k", w.keyword),
	)

	fanoutLimit := limit * 3
	var (
		keywordResults []types.SearchResultItem
		vectorResults  []types.SearchResultItem
		keywordErr     error
		vectorErr      error
		wg             sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = h.keyword.Search(ctx, query, fanoutLimit)
	}()
	go func() {
		defer wg.Done()
		vectorResults, vectorErr = h.vector.Search(ctx, query, fanoutLimit)
	}()
	wg.Wait()

	if keywordErr != nil {
		return nil, fmt.Errorf("hybrid engine: keyword fan-out failed: %w", keywordErr)
	}
	if vectorErr != nil {
		return nil, fmt.Errorf("hybrid engine: vector fan-out failed: %w", vectorErr)
	}

	merged := mergeByName(vectorResults, keywordResults, w)

	items := make([]types.SearchResultItem, 0, len(merged))
	for _, v := range merged {
		items = append(items, *v)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	if len(items) > limit {
		items = items[:limit]
	}

	log.Debug().Int("keyword_n", len(keywordResults)).Int("vector_n", len(vectorResults)).Int("merged_n", len(items)).Msg("hybrid search complete")
	return items, nil
}

// mergeByName folds vector then keyword results into a single mapping
// keyed by display name — the identity key the source implementation
// uses, preserved here as documented in DESIGN.md rather than replaced
// with a document id, since candidates missing a stable id still need to
// merge against name-only entries from either engine.
func mergeByName(vectorResults, keywordResults []types.SearchResultItem, w *weights) map[string]*types.SearchResultItem {
	merged := make(map[string]*types.SearchResultItem, len(vectorResults)+len(keywordResults))

	for i := range vectorResults {
		v := vectorResults[i]
		entry := v
		entry.Score = v.Score * w.vector
		entry.MatchType = types.MatchHybrid
		merged[v.Name] = &entry
	}

	for i := range keywordResults {
		kw := keywordResults[i]
		if existing, ok := merged[kw.Name]; ok {
			existing.Score += kw.Score * w.keyword
			if len(kw.Content) > len(existing.Content) {
				existing.Content = kw.Content
			}
			if existing.ID == "" {
				existing.ID = kw.ID
			}
		} else {
			entry := kw
			entry.Score = kw.Score * w.keyword
			entry.MatchType = types.MatchHybrid
			merged[kw.Name] = &entry
		}
	}

	return merged
}
