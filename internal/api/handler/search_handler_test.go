package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/api/handler"
	"ai-agent-go/internal/api/router"
	"ai-agent-go/internal/config"
	"ai-agent-go/internal/conversation"
	"ai-agent-go/internal/pipeline"
	"ai-agent-go/internal/types"
)

type stubSearcher struct {
	results []types.SearchResultItem
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]types.SearchResultItem, error) {
	return s.results, s.err
}

func newTestEngine(t *testing.T, p *pipeline.Pipeline) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	searchHandler := handler.NewSearchHandler(p, nil)
	chatHandler := handler.NewChatHandler(p, conversation.NewStore(10), nil, "mock", "mock-model")
	historyHandler := handler.NewHistoryHandler(conversation.NewStore(10))
	router.RegisterRoutes(h, searchHandler, chatHandler, historyHandler, "")
	return h
}

func TestHandleSearch_RejectsEmptyQuery(t *testing.T) {
	p := pipeline.New(&stubSearcher{}, &stubSearcher{}, &stubSearcher{}, nil, nil, config.RerankConfig{})
	h := newTestEngine(t, p)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/search",
		&ut.Body{Body: bytes.NewBufferString(`{"query":"","searchType":"hybrid","topK":3}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleSearch_RejectsUnknownSearchType(t *testing.T) {
	p := pipeline.New(&stubSearcher{}, &stubSearcher{}, &stubSearcher{}, nil, nil, config.RerankConfig{})
	h := newTestEngine(t, p)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/search",
		&ut.Body{Body: bytes.NewBufferString(`{"query":"golang","searchType":"bogus","topK":3}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleSearch_ReturnsResultsOnSuccess(t *testing.T) {
	hybrid := &stubSearcher{results: []types.SearchResultItem{{Name: "Alice", Score: 0.9}}}
	p := pipeline.New(&stubSearcher{}, &stubSearcher{}, hybrid, nil, nil, config.RerankConfig{})
	h := newTestEngine(t, p)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/search",
		&ut.Body{Body: bytes.NewBufferString(`{"query":"golang","searchType":"hybrid","topK":3}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["resultCount"])
}

func TestHandleSearch_PipelineNotReady(t *testing.T) {
	h := newTestEngine(t, nil)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/search",
		&ut.Body{Body: bytes.NewBufferString(`{"query":"golang","searchType":"hybrid","topK":3}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestEngine(t, nil)
	resp := ut.PerformRequest(h.Engine, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}
