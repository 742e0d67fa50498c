package handler

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"ai-agent-go/internal/conversation"
)

// HistoryHandler serves the History and Delete endpoints (spec §6) over
// the in-process conversation store.
type HistoryHandler struct {
	conversation *conversation.Store
}

// NewHistoryHandler builds a HistoryHandler.
func NewHistoryHandler(store *conversation.Store) *HistoryHandler {
	return &HistoryHandler{conversation: store}
}

type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type historyResponse struct {
	ConversationID string           `json:"conversationId"`
	Messages       []historyMessage `json:"messages"`
	MessageCount   int              `json:"messageCount"`
}

type historyRequest struct {
	ConversationID string `json:"conversationId"`
}

// HandleHistory serves GET /api/v1/conversations/:conversation_id/history
// (also accepts the id via JSON body for parity with the other endpoints).
func (h *HistoryHandler) HandleHistory(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("conversation_id")
	if id == "" {
		var req historyRequest
		_ = json.Unmarshal(ctx.Request.Body(), &req)
		id = req.ConversationID
	}
	if id == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "conversationId must not be empty"})
		return
	}
	if !h.conversation.Exists(id) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "unknown conversationId"})
		return
	}

	mem := h.conversation.Get(id)
	msgs := mem.Messages()
	out := make([]historyMessage, len(msgs))
	for i, m := range msgs {
		out[i] = historyMessage{Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp.Unix()}
	}

	ctx.JSON(consts.StatusOK, historyResponse{
		ConversationID: id,
		Messages:       out,
		MessageCount:   len(out),
	})
}

// HandleDelete serves DELETE /api/v1/conversations/:conversation_id.
func (h *HistoryHandler) HandleDelete(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("conversation_id")
	if id == "" {
		var req historyRequest
		_ = json.Unmarshal(ctx.Request.Body(), &req)
		id = req.ConversationID
	}
	if id == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "conversationId must not be empty"})
		return
	}

	if !h.conversation.Delete(id) {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "unknown conversationId"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"conversationId": id, "deleted": true})
}
