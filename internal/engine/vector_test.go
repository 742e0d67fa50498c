package engine_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/embedding"
	"ai-agent-go/internal/engine"
	"ai-agent-go/internal/store"
	"ai-agent-go/internal/types"
)

type fakeVectorStore struct {
	matches []store.VectorMatch
}

func (f *fakeVectorStore) VectorQuery(ctx context.Context, vector []float32, limit int) ([]store.VectorMatch, error) {
	if limit < len(f.matches) {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

func TestVector_Search_PreservesStoreOrder(t *testing.T) {
	vs := &fakeVectorStore{matches: []store.VectorMatch{
		{Document: types.ResumeDocument{ID: "a", Name: "Alice"}, Score: 0.92},
		{Document: types.ResumeDocument{ID: "b", Name: "Bob"}, Score: 0.55},
	}}
	v := engine.NewVector(embedding.NewMockClient(8), vs, nil)

	results, err := v.Search(context.Background(), "any query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 0.92, results[0].Score, 0.001)
	assert.Equal(t, "b", results[1].ID)
	assert.InDelta(t, 0.55, results[1].Score, 0.001)
	assert.Equal(t, types.MatchVector, results[0].MatchType)
}

func TestVector_Search_ClampsScoresTo01(t *testing.T) {
	vs := &fakeVectorStore{matches: []store.VectorMatch{
		{Document: types.ResumeDocument{ID: "a", Name: "Alice"}, Score: 1.5},
		{Document: types.ResumeDocument{ID: "b", Name: "Bob"}, Score: -0.2},
	}}
	v := engine.NewVector(embedding.NewMockClient(8), vs, nil)

	results, err := v.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 0.0, results[1].Score)
}

type fakeHydrator struct {
	docs map[string]*types.ResumeDocument
}

func (f *fakeHydrator) GetByID(ctx context.Context, id string) (*types.ResumeDocument, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("no document with id %q", id)
	}
	return doc, nil
}

func TestVector_Search_HydratesPayloadlessHitFromStore(t *testing.T) {
	vs := &fakeVectorStore{matches: []store.VectorMatch{
		{Document: types.ResumeDocument{ID: "a"}, Score: 0.8},
	}}
	hydrator := &fakeHydrator{docs: map[string]*types.ResumeDocument{
		"a": {ID: "a", Name: "Alice", Email: "alice@example.com", Text: "alice's resume"},
	}}
	v := engine.NewVector(embedding.NewMockClient(8), vs, hydrator)

	results, err := v.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Alice", results[0].Name)
	assert.Equal(t, "alice@example.com", results[0].Email)
}

func TestVector_Search_HydrationFailureLeavesBlankFields(t *testing.T) {
	vs := &fakeVectorStore{matches: []store.VectorMatch{
		{Document: types.ResumeDocument{ID: "missing"}, Score: 0.8},
	}}
	hydrator := &fakeHydrator{docs: map[string]*types.ResumeDocument{}}
	v := engine.NewVector(embedding.NewMockClient(8), vs, hydrator)

	results, err := v.Search(context.Background(), "q", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "missing", results[0].ID)
	assert.Empty(t, results[0].Name)
}
