package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"

	"ai-agent-go/internal/conversation"
	"ai-agent-go/internal/filter"
	"ai-agent-go/internal/logger"
	"ai-agent-go/internal/pipeline"
	"ai-agent-go/internal/types"
)

// ChatHandler serves the Chat endpoint (spec §6): it routes between the
// Retrieval Pipeline (fresh hybrid searches) and the Conversational
// Filter (narrowing a conversation's cached results), and always appends
// the exchange to that conversation's memory.
type ChatHandler struct {
	pipeline     *pipeline.Pipeline
	conversation *conversation.Store
	filter       *filter.Filter
	provider     string
	model        string
}

// NewChatHandler builds a ChatHandler. provider/model are echoed back in
// every response's {provider, model} fields.
func NewChatHandler(p *pipeline.Pipeline, store *conversation.Store, f *filter.Filter, provider, model string) *ChatHandler {
	return &ChatHandler{pipeline: p, conversation: store, filter: f, provider: provider, model: model}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	IncludeHistory *bool  `json:"includeHistory"`
	TopK           int    `json:"topK"`
}

type chatSearchMetadata struct {
	Query       string `json:"query"`
	SearchType  string `json:"searchType"`
	ResultCount int    `json:"resultCount"`
	DurationMs  int64  `json:"duration_ms"`
}

type chatResponse struct {
	Response       string                   `json:"response"`
	ConversationID string                   `json:"conversationId"`
	MessageCount   int                      `json:"messageCount"`
	Model          string                   `json:"model"`
	Provider       string                   `json:"provider"`
	SearchResults  []types.SearchResultItem `json:"searchResults"`
	SearchMetadata chatSearchMetadata       `json:"searchMetadata"`
}

// HandleChat serves POST /api/v1/chat.
func (h *ChatHandler) HandleChat(c context.Context, ctx *app.RequestContext) {
	var req chatRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "malformed request body"})
		return
	}
	if req.Message == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "message must not be empty"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	log := logger.Component("api.chat")

	isNew := req.ConversationID == ""
	if isNew {
		id, err := uuid.NewV7()
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "failed to allocate conversation id"})
			return
		}
		req.ConversationID = id.String()
	}
	mem := h.conversation.Get(req.ConversationID)

	useFilter := mem.HasResults() && (filter.HasIntent(req.Message) || !isNew)

	var (
		results    []types.SearchResultItem
		searchType types.SearchType
		summary    string
		duration   time.Duration
	)

	if useFilter && h.filter != nil {
		start := time.Now()
		filtered, s, err := h.filter.Filter(c, req.Message, mem.GetLastResults())
		duration = time.Since(start)
		if err != nil {
			log.Error().Err(err).Msg("conversational filter failed")
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		results = filtered
		searchType = "filter"
		summary = s
	} else {
		if h.pipeline == nil {
			ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": pipeline.ErrNotReady.Error()})
			return
		}
		start := time.Now()
		r, analysis, err := h.pipeline.Search(c, req.Message, types.SearchHybrid, req.TopK)
		duration = time.Since(start)
		if err != nil {
			log.Error().Err(err).Msg("pipeline search failed")
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
			return
		}
		results = r
		searchType = types.SearchHybrid
		mem.SetLastResults(results)
		if analysis != nil {
			summary = analysis.Summary
		}
	}

	responseText := summary
	if responseText == "" {
		responseText = fmt.Sprintf("found %d result(s)", len(results))
	}
	mem.AddExchange(req.Message, responseText)

	ctx.JSON(consts.StatusOK, chatResponse{
		Response:       responseText,
		ConversationID: req.ConversationID,
		MessageCount:   len(mem.Messages()),
		Model:          h.model,
		Provider:       h.provider,
		SearchResults:  results,
		SearchMetadata: chatSearchMetadata{
			Query:       req.Message,
			SearchType:  string(searchType),
			ResultCount: len(results),
			DurationMs:  duration.Milliseconds(),
		},
	})
}
