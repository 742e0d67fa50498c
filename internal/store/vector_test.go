package store_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/config"
	"ai-agent-go/internal/store"
)

func TestVectorStore_VectorQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/resumes/points/search" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{
				"result": [
					{"id": "doc-a", "score": 0.92, "payload": {"document_id": "doc-a", "name": "Alice", "skills": ["Go", "Python"]}},
					{"id": "doc-b", "score": 0.55, "payload": {"document_id": "doc-b", "name": "Bob"}}
				],
				"status": "ok"
			}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	vs, err := store.NewVectorStore(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "resumes",
		Dimension:  4,
	})
	require.NoError(t, err)

	matches, err := vs.VectorQuery(context.Background(), []float32{0.1, 0.2, 0.3, 0.4}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc-a", matches[0].Document.ID)
	assert.InDelta(t, 0.92, matches[0].Score, 0.001)
	assert.Equal(t, []string{"Go", "Python"}, matches[0].Document.Skills)
	assert.Equal(t, "doc-b", matches[1].Document.ID)
}

func TestVectorStore_VectorQuery_IndexUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	vs, err := store.NewVectorStore(&config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "missing",
		Dimension:  4,
	})
	require.NoError(t, err)

	_, err = vs.VectorQuery(context.Background(), []float32{0.1, 0.2, 0.3, 0.4}, 2)
	assert.ErrorIs(t, err, store.ErrIndexUnavailable)
}
