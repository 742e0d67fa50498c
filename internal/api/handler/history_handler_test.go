package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-agent-go/internal/conversation"
)

func TestHandleHistory_UnknownConversationReturnsNotFound(t *testing.T) {
	store := conversation.NewStore(10)
	h := newChatTestEngine(t, nil, nil, store)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/conversations/does-not-exist/history", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleHistory_ReturnsMessagesForKnownConversation(t *testing.T) {
	store := conversation.NewStore(10)
	mem := store.Get("conv-42")
	mem.AddExchange("hello", "hi there")

	h := newChatTestEngine(t, nil, nil, store)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/conversations/conv-42/history", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "conv-42", body["conversationId"])
	assert.Equal(t, float64(2), body["messageCount"])
}

func TestHandleDelete_RemovesConversation(t *testing.T) {
	store := conversation.NewStore(10)
	store.Get("conv-99")

	h := newChatTestEngine(t, nil, nil, store)

	resp := ut.PerformRequest(h.Engine, "DELETE", "/api/v1/conversations/conv-99", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	assert.False(t, store.Exists("conv-99"))
}

func TestHandleDelete_UnknownConversationReturnsNotFound(t *testing.T) {
	store := conversation.NewStore(10)
	h := newChatTestEngine(t, nil, nil, store)

	resp := ut.PerformRequest(h.Engine, "DELETE", "/api/v1/conversations/never-existed", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
