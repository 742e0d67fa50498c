package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"ai-agent-go/internal/api/handler"
	"ai-agent-go/internal/api/router"
	"ai-agent-go/internal/chatmodel"
	"ai-agent-go/internal/config"
	"ai-agent-go/internal/conversation"
	"ai-agent-go/internal/embedding"
	"ai-agent-go/internal/engine"
	"ai-agent-go/internal/filter"
	appLogger "ai-agent-go/internal/logger"
	"ai-agent-go/internal/pipeline"
	"ai-agent-go/internal/rerank"
	"ai-agent-go/internal/store"
	"ai-agent-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("failed to load config: %v", err)
	}

	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	glog.SetLogger(hertzadapter.From(appLogger.Logger))
	log := appLogger.Component("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("tracing provider init failed, continuing without export")
		shutdownTracing = func(context.Context) error { return nil }
	}

	docStore, err := store.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("document store unavailable at startup, search endpoint will report pipeline-not-ready")
	}
	if docStore != nil {
		defer docStore.Close()
	}

	var embedClient embedding.Client
	switch cfg.Embedding.Provider {
	case "mock":
		embedClient = embedding.NewMockClient(cfg.Embedding.Dimensions)
	default:
		embedClient, err = embedding.NewAliyunClient(cfg.Embedding.APIKey, cfg.Embedding, cfg.QPMFor(cfg.Embedding.Model, cfg.Embedding.QPM))
		if err != nil {
			log.Error().Err(err).Msg("embedding client init failed, vector search will be unavailable")
			embedClient = nil
		}
	}

	var chatClient chatmodel.Client
	switch cfg.ChatModel.Provider {
	case "mock":
		chatClient = chatmodel.NewMockClient("", nil)
	default:
		chatClient, err = chatmodel.NewAliyunClient(cfg.ChatModel.APIKey, cfg.ChatModel, cfg.QPMFor(cfg.ChatModel.Model, cfg.ChatModel.QPM))
		if err != nil {
			log.Error().Err(err).Msg("chat model client init failed, re-rank and filter will be unavailable")
			chatClient = nil
		}
	}

	var (
		keywordEngine *engine.Keyword
		vectorEngine  *engine.Vector
		hybridEngine  *engine.Hybrid
	)
	if docStore != nil && docStore.Keyword != nil {
		keywordEngine = engine.NewKeyword(docStore.Keyword)
	}
	if docStore != nil && docStore.Vector != nil && embedClient != nil {
		var hydrator engine.DocumentByIDStore
		if docStore.Keyword != nil {
			hydrator = docStore.Keyword
		}
		vectorEngine = engine.NewVector(embedClient, docStore.Vector, hydrator)
	}
	if keywordEngine != nil && vectorEngine != nil {
		hybridEngine = engine.NewHybrid(keywordEngine, vectorEngine, cfg.Hybrid.VectorWeight, cfg.Hybrid.KeywordWeight)
	}

	var reranker *rerank.Reranker
	if chatClient != nil {
		reranker = rerank.New(chatClient)
	}

	toSearcher := func(k *engine.Keyword) pipeline.Searcher {
		if k == nil {
			return nil
		}
		return k
	}
	toVecSearcher := func(v *engine.Vector) pipeline.Searcher {
		if v == nil {
			return nil
		}
		return v
	}
	toHybridSearcher := func(h *engine.Hybrid) pipeline.Searcher {
		if h == nil {
			return nil
		}
		return h
	}
	var pipelineReranker pipeline.Reranker
	if reranker != nil {
		pipelineReranker = reranker
	}
	var pipelineCache pipeline.Cache
	if docStore != nil && docStore.Cache != nil {
		pipelineCache = docStore.Cache
	}

	pl := pipeline.New(toSearcher(keywordEngine), toVecSearcher(vectorEngine), toHybridSearcher(hybridEngine), pipelineReranker, pipelineCache, cfg.Rerank)

	var convFilter *filter.Filter
	if chatClient != nil {
		convFilter = filter.New(chatClient)
	}

	convStore := conversation.NewStore(cfg.Conversation.MaxHistory)

	searchHandler := handler.NewSearchHandler(pl, hybridEngine)
	chatHandler := handler.NewChatHandler(pl, convStore, convFilter, cfg.ChatModel.Provider, cfg.ChatModel.Model)
	historyHandler := handler.NewHistoryHandler(convStore)

	serverTracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	router.RegisterRoutes(h, searchHandler, chatHandler, historyHandler, cfg.Server.APIKey)

	log.Info().Str("address", cfg.Server.Address).Msg("starting HTTP server")
	go func() {
		if err := h.Run(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing provider shutdown error")
	}
	log.Info().Msg("shutdown complete")
}
