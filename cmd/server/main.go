// Command server starts the ConectaI chatbot HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	ai "github.com/exdly/conectai/internal/adapter/ai"
	"github.com/exdly/conectai/internal/adapter/ai/gemini"
	"github.com/exdly/conectai/internal/adapter/ai/openrouter"
	"github.com/exdly/conectai/internal/adapter/docsearch"
	httpserver "github.com/exdly/conectai/internal/adapter/httpserver"
	"github.com/exdly/conectai/internal/adapter/observability"
	"github.com/exdly/conectai/internal/adapter/repo/postgres"
	"github.com/exdly/conectai/internal/adapter/snapshot"
	"github.com/exdly/conectai/internal/adapter/webcontent"
	"github.com/exdly/conectai/internal/app"
	"github.com/exdly/conectai/internal/config"
	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/internal/knowledge"
	"github.com/exdly/conectai/internal/responder"
	"github.com/exdly/conectai/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Knowledge base is embedded; without it nothing can be answered.
	kb, err := knowledge.Load()
	if err != nil {
		slog.Error("knowledge base load failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Persistence is best effort: without a database the bot still answers,
	// it just keeps no conversations.
	var (
		convRepo    domain.ConversationRepository
		consultRepo domain.ConsultationRepository
		dbCheck     func(context.Context) error
	)
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Warn("db unavailable, running without persistence", slog.Any("error", err))
	} else {
		defer pool.Close()
		convRepo = postgres.NewConversationRepo(pool)
		consultRepo = postgres.NewConsultationRepo(pool)
		dbCheck = pool.Ping
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	redisCheck := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }

	web := webcontent.New(cfg.InstitutePages(), rdb, cfg.WebRefreshEvery, logger)
	go refreshWebContent(ctx, web, cfg.WebRefreshEvery)

	docs := docsearch.New(cfg.DocsDir, logger)

	gen := ai.NewOrchestrator(buildChains(cfg), ai.Options{
		Cooldowns: ai.CooldownPolicy{
			Default: cfg.CooldownDefault,
			Buffer:  cfg.CooldownBuffer,
			Max:     cfg.CooldownMax,
		},
		Prompt: ai.PromptBuilder{
			InjectEvidence: cfg.InjectEvidence,
			MaxTokens:      cfg.MaxPrimaryContextChars / 4,
		},
	}, logger)

	pipeline := responder.New(kb, docs, web, gen, responder.Config{
		DocContextBudget: cfg.MaxDocContextChars,
		WebContextBudget: cfg.MaxWebContextChars,
	}, logger)

	cache := ai.NewAnswerCache(cfg.CacheCapacity, snapshot.NewFileStore(cfg.CacheFile, logger), logger)
	slog.Info("answer cache ready", slog.Int("entries", cache.Len()), slog.String("file", cfg.CacheFile))

	chatSvc := usecase.NewChatService(cache, pipeline, convRepo, consultRepo, logger)

	srv := &httpserver.Server{Cfg: cfg, Chat: chatSvc, DBCheck: dbCheck, RedisCheck: redisCheck}
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}

// buildChains assembles the provider fallback order. A provider without an
// API key is left out so the orchestrator never wastes a call on it.
func buildChains(cfg config.Config) []ai.Chain {
	var chains []ai.Chain
	if cfg.OpenRouterAPIKey != "" {
		chains = append(chains, ai.Chain{
			Client: openrouter.New(openrouter.Config{
				APIKey:      cfg.OpenRouterAPIKey,
				BaseURL:     cfg.OpenRouterBaseURL,
				Referer:     cfg.OpenRouterReferer,
				Title:       cfg.OpenRouterTitle,
				Temperature: cfg.ModelTemperature,
				MaxTokens:   cfg.MaxOutputTokens,
				Timeout:     cfg.ProviderTimeout,
			}),
			Models:          cfg.OpenRouterModels,
			CooldownEnabled: true,
		})
	}
	if cfg.GeminiAPIKey != "" {
		chains = append(chains, ai.Chain{
			Client: gemini.New(gemini.Config{
				APIKey:      cfg.GeminiAPIKey,
				BaseURL:     cfg.GeminiBaseURL,
				Temperature: cfg.ModelTemperature,
				MaxTokens:   cfg.MaxOutputTokens,
				Timeout:     cfg.ProviderTimeout,
			}),
			Models:          cfg.GeminiModels,
			CooldownEnabled: false,
		})
	}
	if len(chains) == 0 {
		slog.Warn("no provider API keys configured, model answers disabled")
	}
	return chains
}

// refreshWebContent warms the scraped site content once at startup and then
// re-scrapes on the configured interval.
func refreshWebContent(ctx context.Context, web *webcontent.Provider, every time.Duration) {
	if every <= 0 {
		return
	}
	if _, err := web.WebsiteContent(ctx, true); err != nil {
		slog.Warn("initial web scrape failed", slog.Any("error", err))
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := web.WebsiteContent(ctx, true); err != nil {
				slog.Warn("web scrape failed", slog.Any("error", err))
			}
		}
	}
}
