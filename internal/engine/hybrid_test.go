package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/engine"
	"ai-agent-go/internal/types"
)

type fixedSearcher struct {
	results []types.SearchResultItem
}

func (f *fixedSearcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	return f.results, nil
}

func TestHybrid_Search_CombinesScoresByConfiguredWeights(t *testing.T) {
	keyword := &fixedSearcher{results: []types.SearchResultItem{
		{ID: "a", Name: "A", Score: 0.5},
		{ID: "b", Name: "B", Score: 0.4},
	}}
	vector := &fixedSearcher{results: []types.SearchResultItem{
		{ID: "a", Name: "A", Score: 0.9},
		{ID: "c", Name: "C", Score: 0.7},
	}}

	h := engine.NewHybrid(keyword, vector, 0.7, 0.3)

	results, err := h.Search(context.Background(), "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := map[string]types.SearchResultItem{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.InDelta(t, 0.78, byName["A"].Score, 0.0001)
	assert.InDelta(t, 0.49, byName["C"].Score, 0.0001)
	assert.InDelta(t, 0.12, byName["B"].Score, 0.0001)

	assert.Equal(t, "A", results[0].Name)
	assert.Equal(t, "C", results[1].Name)
	assert.Equal(t, "B", results[2].Name)
	assert.Equal(t, types.MatchHybrid, results[0].MatchType)
}

func TestHybrid_Search_FailsIfEitherEngineFails(t *testing.T) {
	failing := &erroringSearcher{}
	ok := &fixedSearcher{}

	h := engine.NewHybrid(failing, ok, 0.7, 0.3)
	_, err := h.Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

type erroringSearcher struct{}

func (e *erroringSearcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	return nil, assert.AnError
}

func TestHybrid_UpdateWeights_AffectsOnlySubsequentSearches(t *testing.T) {
	keyword := &fixedSearcher{results: []types.SearchResultItem{{ID: "a", Name: "A", Score: 1.0}}}
	vector := &fixedSearcher{results: nil}

	h := engine.NewHybrid(keyword, vector, 0.7, 0.3)
	first, err := h.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, first[0].Score, 0.0001)

	h.UpdateWeights(0.7, 0.6)
	second, err := h.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, second[0].Score, 0.0001)
}
