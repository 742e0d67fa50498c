package pipeline_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/constants"
	"ai-agent-go/internal/pipeline"
	"ai-agent-go/internal/rerank"
	"ai-agent-go/internal/types"
)

// fakeCache is a local, in-memory double for pipeline.Cache: lockHeld
// simulates another caller already owning the signature's lock, so
// AcquireLock always fails and Search falls back to polling.
type fakeCache struct {
	mu           sync.Mutex
	results      map[string][]types.SearchResultItem
	lockHeld     bool
	acquireCalls int
	releaseCalls int
	getCalls     int
}

func newFakeCache() *fakeCache {
	return &fakeCache{results: make(map[string][]types.SearchResultItem)}
}

func cacheKey(query string, searchType types.SearchType, k int) string {
	return fmt.Sprintf("%s:%s:%d", searchType, query, k)
}

func (c *fakeCache) GetResults(ctx context.Context, query string, searchType types.SearchType, k int) ([]types.SearchResultItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	items, ok := c.results[cacheKey(query, searchType, k)]
	if !ok {
		return nil, fmt.Errorf("cache miss")
	}
	return items, nil
}

func (c *fakeCache) SetResults(ctx context.Context, query string, searchType types.SearchType, k int, items []types.SearchResultItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[cacheKey(query, searchType, k)] = items
	return nil
}

func (c *fakeCache) AcquireLock(ctx context.Context, query string, searchType types.SearchType, k int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquireCalls++
	if c.lockHeld {
		return "", nil
	}
	return "lock-value", nil
}

func (c *fakeCache) ReleaseLock(ctx context.Context, query string, searchType types.SearchType, k int, lockValue string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseCalls++
	return true, nil
}

type stubSearcher struct {
	results []types.SearchResultItem
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	return s.results, s.err
}

type stubReranker struct {
	results  []types.SearchResultItem
	analysis rerank.Analysis
	err      error
}

func (s *stubReranker) RerankAndFilter(ctx context.Context, query string, candidates []types.SearchResultItem) ([]types.SearchResultItem, rerank.Analysis, error) {
	return s.results, s.analysis, s.err
}

func TestPipeline_Search_RerankDisabled_TruncatesToK(t *testing.T) {
	hybrid := &stubSearcher{results: []types.SearchResultItem{
		{Name: "A", Score: 0.9}, {Name: "B", Score: 0.5}, {Name: "C", Score: 0.2},
	}}
	p := pipeline.New(nil, nil, hybrid, nil, nil, config.RerankConfig{Enabled: false})

	results, analysis, err := p.Search(context.Background(), "q", types.SearchHybrid, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Nil(t, analysis)
}

func TestPipeline_Search_RerankEnabled_FetchesRetrievalTopK(t *testing.T) {
	var capturedLimit int
	hybrid := &captureLimitSearcher{capture: &capturedLimit, results: []types.SearchResultItem{
		{Name: "A", Score: 0.9},
	}}
	reranker := &stubReranker{results: []types.SearchResultItem{{Name: "A", Score: 0.95}}, analysis: rerank.Analysis{Summary: "ok"}}
	p := pipeline.New(nil, nil, hybrid, reranker, nil, config.RerankConfig{Enabled: true, RetrievalTopK: 10})

	results, analysis, err := p.Search(context.Background(), "q", types.SearchHybrid, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, capturedLimit)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Name)
	require.NotNil(t, analysis)
	assert.Equal(t, "ok", analysis.Summary)
}

func TestPipeline_Search_EngineNotReady(t *testing.T) {
	p := pipeline.New(nil, nil, nil, nil, nil, config.RerankConfig{})
	_, _, err := p.Search(context.Background(), "q", types.SearchHybrid, 3)
	assert.ErrorIs(t, err, pipeline.ErrNotReady)
}

func TestPipeline_Search_UnknownSearchType(t *testing.T) {
	hybrid := &stubSearcher{}
	p := pipeline.New(hybrid, hybrid, hybrid, nil, nil, config.RerankConfig{})
	_, _, err := p.Search(context.Background(), "q", types.SearchType("bogus"), 3)
	assert.Error(t, err)
}

func TestPipeline_Search_CacheHitSkipsEngine(t *testing.T) {
	hybrid := &stubSearcher{err: fmt.Errorf("engine should not be called on a cache hit")}
	cache := newFakeCache()
	cache.results["hybrid:q:3"] = []types.SearchResultItem{{Name: "Cached", Score: 0.5}}
	p := pipeline.New(nil, nil, hybrid, nil, cache, config.RerankConfig{})

	results, analysis, err := p.Search(context.Background(), "q", types.SearchHybrid, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cached", results[0].Name)
	assert.Nil(t, analysis)
}

func TestPipeline_Search_CacheMissAcquiresLockAndPopulatesCache(t *testing.T) {
	hybrid := &stubSearcher{results: []types.SearchResultItem{{Name: "A", Score: 0.9}}}
	cache := newFakeCache()
	p := pipeline.New(nil, nil, hybrid, nil, cache, config.RerankConfig{})

	results, _, err := p.Search(context.Background(), "q", types.SearchHybrid, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 1, cache.acquireCalls)
	assert.Equal(t, 1, cache.releaseCalls)
	cached, ok := cache.results["hybrid:q:3"]
	require.True(t, ok)
	assert.Equal(t, "A", cached[0].Name)
}

func TestPipeline_Search_LockHeldElsewherePollsThenRunsUncached(t *testing.T) {
	hybrid := &stubSearcher{results: []types.SearchResultItem{{Name: "A", Score: 0.9}}}
	cache := newFakeCache()
	cache.lockHeld = true
	p := pipeline.New(nil, nil, hybrid, nil, cache, config.RerankConfig{})

	results, _, err := p.Search(context.Background(), "q", types.SearchHybrid, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Name)
	// the poll exhausted its attempts against the still-held lock
	assert.GreaterOrEqual(t, cache.getCalls, constants.SearchLockPollAttempts)
}

type captureLimitSearcher struct {
	capture *int
	results []types.SearchResultItem
}

func (c *captureLimitSearcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	*c.capture = limit
	return c.results, nil
}
