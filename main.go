package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/askfloyd/orchestrator/internal/auth"
	"github.com/askfloyd/orchestrator/internal/cache"
	"github.com/askfloyd/orchestrator/internal/chat"
	"github.com/askfloyd/orchestrator/internal/circuitbreaker"
	"github.com/askfloyd/orchestrator/internal/config"
	"github.com/askfloyd/orchestrator/internal/health"
	"github.com/askfloyd/orchestrator/internal/httpapi"
	"github.com/askfloyd/orchestrator/internal/llm"
	"github.com/askfloyd/orchestrator/internal/search"
	"github.com/askfloyd/orchestrator/internal/tracing"
	"github.com/askfloyd/orchestrator/internal/workerpool"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	if err := tracing.Initialize(tracing.Config{
		Enabled:      cfg.Observability.Tracing.Enabled,
		ServiceName:  cfg.Observability.Tracing.ServiceName,
		OTLPEndpoint: cfg.Observability.Tracing.OTLPEndpoint,
	}, logger); err != nil {
		logger.Warn("Tracing initialization failed", zap.Error(err))
	}

	circuitbreaker.StartMetricsCollection()

	// Admin endpoints (metrics) live on their own port so the public
	// surface stays minimal.
	if cfg.Observability.Metrics.Enabled {
		go func() {
			adminMux := http.NewServeMux()
			adminMux.Handle("/metrics", promhttp.Handler())
			addr := ":" + strconv.Itoa(cfg.Observability.Metrics.Port)
			logger.Info("Metrics server listening", zap.String("address", addr))
			if err := http.ListenAndServe(addr, adminMux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	searchClient := search.NewClient(cfg.Search, logger)
	llmClient := llm.NewClient(cfg.LLM, logger)

	healthMgr := health.NewManager(logger)
	healthMgr.Register(health.NewHTTPServiceChecker("search", cfg.Search.BaseURL, true))
	healthMgr.Register(health.NewHTTPServiceChecker("llm", cfg.LLM.BaseURL, false))

	pool := workerpool.New(cfg.Chat.Workers, logger)
	defer pool.Close()

	// The rewrite cache degrades to in-process only when Redis is down.
	var queryCache cache.QueryCache
	lru := cache.NewLocalLRU(cfg.Cache.MaxLocal)
	if cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Cache.RedisAddr, logger)
		if err != nil {
			logger.Warn("Redis unavailable, using local cache only", zap.Error(err))
			queryCache = lru
		} else {
			defer redisCache.Close()
			queryCache = cache.NewTiered(lru, redisCache)
			healthMgr.Register(health.NewRedisChecker(redisCache.Wrapper()))
		}
	} else {
		queryCache = lru
	}

	prompts := chat.NewPromptLibrary(logger)
	promptMgr, err := config.NewManager(cfg.Prompts.Dir, logger)
	if err != nil {
		logger.Warn("Prompt directory unavailable, using built-in templates",
			zap.String("dir", cfg.Prompts.Dir),
			zap.Error(err),
		)
	} else {
		prompts.Subscribe(promptMgr)
		if err := promptMgr.Start(ctx); err != nil {
			logger.Warn("Prompt hot-reload disabled", zap.Error(err))
		}
		defer promptMgr.Stop()
	}

	rewriter := chat.NewRewriter(llmClient, prompts, pool, queryCache, cfg.Chat, cfg.LLM.Model, logger)
	pipeline := chat.NewPipeline(searchClient, llmClient, prompts, rewriter, pool, cfg.Chat, cfg.LLM, logger)

	jwtManager := auth.NewJWTManager(cfg.Auth.SigningKey, cfg.Auth.Issuer, time.Hour)
	middleware := auth.NewMiddleware(jwtManager, !cfg.Auth.Enabled)

	mux := http.NewServeMux()
	httpapi.RegisterRoutes(mux,
		httpapi.NewChatHandler(pipeline, logger),
		httpapi.NewHealthHandler(healthMgr.Ready, logger),
		middleware,
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
