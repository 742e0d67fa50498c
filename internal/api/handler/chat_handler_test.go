package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/api/handler"
	"ai-agent-go/internal/api/router"
	"ai-agent-go/internal/chatmodel"
	"ai-agent-go/internal/config"
	"ai-agent-go/internal/conversation"
	"ai-agent-go/internal/filter"
	"ai-agent-go/internal/pipeline"
	"ai-agent-go/internal/types"
)

func newChatTestEngine(t *testing.T, p *pipeline.Pipeline, f *filter.Filter, store *conversation.Store) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	searchHandler := handler.NewSearchHandler(p, nil)
	chatHandler := handler.NewChatHandler(p, store, f, "mock", "mock-model")
	historyHandler := handler.NewHistoryHandler(store)
	router.RegisterRoutes(h, searchHandler, chatHandler, historyHandler, "")
	return h
}

func TestHandleChat_RejectsEmptyMessage(t *testing.T) {
	store := conversation.NewStore(10)
	h := newChatTestEngine(t, nil, nil, store)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/chat",
		&ut.Body{Body: bytes.NewBufferString(`{"message":""}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleChat_NewConversationGeneratesIDAndSearches(t *testing.T) {
	hybrid := &stubSearcher{results: []types.SearchResultItem{{Name: "Bob", Score: 0.8}}}
	p := pipeline.New(&stubSearcher{}, &stubSearcher{}, hybrid, nil, nil, config.RerankConfig{})
	store := conversation.NewStore(10)
	h := newChatTestEngine(t, p, nil, store)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/chat",
		&ut.Body{Body: bytes.NewBufferString(`{"message":"find me a backend engineer"}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	convID, _ := body["conversationId"].(string)
	assert.NotEmpty(t, convID)
	assert.Equal(t, "hybrid", body["searchMetadata"].(map[string]interface{})["searchType"])
}

func TestHandleChat_ExistingConversationWithFilterIntentUsesFilter(t *testing.T) {
	mockChat := chatmodel.NewMockClient("", nil)
	f := filter.New(mockChat)
	store := conversation.NewStore(10)

	mem := store.Get("conv-1")
	mem.SetLastResults([]types.SearchResultItem{{Name: "Carol", Score: 0.7}})

	h := newChatTestEngine(t, nil, f, store)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/chat",
		&ut.Body{Body: bytes.NewBufferString(`{"message":"only show me the senior ones","conversationId":"conv-1"}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "conv-1", body["conversationId"])
}

func TestHandleChat_PipelineNotReadyWhenNoFilterApplies(t *testing.T) {
	store := conversation.NewStore(10)
	h := newChatTestEngine(t, nil, nil, store)

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/chat",
		&ut.Body{Body: bytes.NewBufferString(`{"message":"find me a backend engineer"}`), Len: 0},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
