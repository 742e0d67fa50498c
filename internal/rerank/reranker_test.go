package rerank_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/chatmodel"
	"ai-agent-go/internal/rerank"
	"ai-agent-go/internal/types"
)

func candidates() []types.SearchResultItem {
	return []types.SearchResultItem{
		{ID: "1", Name: "A", Score: 0.5},
		{ID: "2", Name: "B", Score: 0.4},
		{ID: "3", Name: "C", Score: 0.3},
	}
}

func TestRerankAndFilter_DropsNonMatchingAndReorders(t *testing.T) {
	mock := chatmodel.NewMockClient(`{"matches":[{"name":"A","matchesCriteria":true,"relevanceScore":0.9},{"name":"B","matchesCriteria":false,"relevanceScore":0.2},{"name":"C","matchesCriteria":true,"relevanceScore":0.7}],"summary":"2 of 3"}`, nil)
	r := rerank.New(mock)

	results, analysis, err := r.RerankAndFilter(context.Background(), "senior engineers", candidates())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].Name)
	assert.Equal(t, types.MatchLLMReranked, results[0].MatchType)
	assert.Equal(t, "C", results[1].Name)
	assert.Equal(t, "2 of 3", analysis.Summary)
}

func TestRerankAndFilter_ParseFailureFailsOpen(t *testing.T) {
	mock := chatmodel.NewMockClient("sorry I cannot comply", nil)
	r := rerank.New(mock)

	results, analysis, err := r.RerankAndFilter(context.Background(), "q", candidates())
	require.NoError(t, err)
	assert.Equal(t, candidates(), results)
	assert.Contains(t, analysis.Summary, "parse")
}

func TestRerankAndFilter_TransportErrorFailsOpen(t *testing.T) {
	mock := chatmodel.NewMockClient("", errors.New("connection reset"))
	r := rerank.New(mock)

	results, analysis, err := r.RerankAndFilter(context.Background(), "q", candidates())
	require.NoError(t, err)
	assert.Equal(t, candidates(), results)
	assert.Contains(t, analysis.Summary, "LLM error")
}

func TestRerankAndFilter_UnknownVerdictNameIsIgnored(t *testing.T) {
	mock := chatmodel.NewMockClient(`{"matches":[{"name":"Zelda","matchesCriteria":true,"relevanceScore":0.9}],"summary":"ok"}`, nil)
	r := rerank.New(mock)

	results, _, err := r.RerankAndFilter(context.Background(), "q", candidates())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRerankAndFilter_EmptyCandidates(t *testing.T) {
	mock := chatmodel.NewMockClient("", nil)
	r := rerank.New(mock)

	results, analysis, err := r.RerankAndFilter(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, rerank.Analysis{}, analysis)
}
