// Package router registers the Retrieval Pipeline's HTTP surface (spec
// §6) on a Hertz server.
package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"ai-agent-go/internal/api/handler"
)

// RegisterRoutes wires the search, chat, history, and delete endpoints
// plus a liveness check onto h. When apiKey is non-empty, every /api/v1
// route except /health requires it via the X-API-Key header.
func RegisterRoutes(h *server.Hertz, search *handler.SearchHandler, chat *handler.ChatHandler, history *handler.HistoryHandler, apiKey string) {
	api := h.Group("/api/v1")

	if apiKey != "" {
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-API-Key", ""),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				return key == apiKey, nil
			}),
		))
	}

	api.POST("/search", search.HandleSearch)
	api.POST("/chat", chat.HandleChat)
	api.GET("/conversations/:conversation_id/history", history.HandleHistory)
	api.DELETE("/conversations/:conversation_id", history.HandleDelete)

	h.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
