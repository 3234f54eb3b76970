package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgRepo "github.com/vigilfeed/vigilfeed/internal/infra/adapter/persistence/postgres"
	"github.com/vigilfeed/vigilfeed/internal/infra/db"
	"github.com/vigilfeed/vigilfeed/internal/infra/llm/embedding"
	"github.com/vigilfeed/vigilfeed/internal/infra/notifier"
	"github.com/vigilfeed/vigilfeed/internal/infra/summarizer"

	"github.com/vigilfeed/vigilfeed/internal/handler/http/webhook"
	"github.com/vigilfeed/vigilfeed/internal/usecase/enrich"
	fetchUC "github.com/vigilfeed/vigilfeed/internal/usecase/fetch"
	"github.com/vigilfeed/vigilfeed/internal/usecase/knowledge"
	"github.com/vigilfeed/vigilfeed/internal/usecase/qa"
	convo "github.com/vigilfeed/vigilfeed/internal/usecase/qa/context"
	qaratelimit "github.com/vigilfeed/vigilfeed/internal/usecase/qa/ratelimit"
	"github.com/vigilfeed/vigilfeed/internal/usecase/qa/retrieve"
)

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	engine := buildEngine(logger, database)
	limiter := qaratelimit.New(loadRateLimitConfig())
	replier := notifier.NewLarkMessenger(loadLarkConfig(logger))

	h := webhook.New(loadWebhookConfig(), engine, rateLimiterAdapter{limiter}, replier, nil, logger)

	mux := http.NewServeMux()
	webhook.Register(mux, h)

	runServer(logger, mux)
}

func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// buildEngine wires C10-C17: the embedding client and knowledge
// repository into a KnowledgeBase (C11), a Retriever over it (C14), a
// per-user conversation Manager (C15), and the LLM Synthesizer (C6),
// composed into the QAEngine (C17).
func buildEngine(logger *slog.Logger, database *sql.DB) *qa.Engine {
	embedder := embedding.NewClient(os.Getenv("OPENAI_API_KEY"))
	kbRepo := pgRepo.NewKnowledgeRepo(database)
	kb := knowledge.New(kbRepo, embedder, knowledge.DefaultChunkConfig())

	retriever := retrieve.New(kb, retrieve.DefaultConfig())
	history := convo.New(5, time.Hour)
	completer := createSummarizer(logger)
	enricher := enrich.New(completer)

	return qa.New(logger, retriever, history, enricher, qa.DefaultConfig())
}

// createSummarizer mirrors cmd/worker's env-driven summarizer selection:
// this process needs the same Completer port for RAG synthesis that the
// batch pipeline uses for per-article enrichment.
func createSummarizer(logger *slog.Logger) fetchUC.Summarizer {
	summarizerType := os.Getenv("SUMMARIZER_TYPE")
	if summarizerType == "" {
		summarizerType = "claude"
	}

	switch summarizerType {
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Error("ANTHROPIC_API_KEY is required when SUMMARIZER_TYPE=claude")
			os.Exit(1)
		}
		return summarizer.NewClaude(apiKey)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is required when SUMMARIZER_TYPE=openai")
			os.Exit(1)
		}
		cfg, err := summarizer.LoadOpenAIConfig()
		if err != nil {
			logger.Error("failed to load OpenAI configuration", slog.Any("error", err))
			os.Exit(1)
		}
		return summarizer.NewOpenAI(apiKey, cfg)
	default:
		logger.Error("invalid SUMMARIZER_TYPE", slog.String("type", summarizerType))
		os.Exit(1)
		return nil
	}
}

// rateLimiterAdapter adapts qa/ratelimit.Limiter's richer Decision onto
// the webhook.RateLimiter port, which only needs the allow/deny bit.
type rateLimiterAdapter struct{ l *qaratelimit.Limiter }

func (a rateLimiterAdapter) Allow(ctx context.Context, userID string) (webhook.RateDecision, error) {
	d, err := a.l.Allow(ctx, userID)
	if err != nil {
		return webhook.RateDecision{}, err
	}
	return webhook.RateDecision{Allowed: d.Allowed}, nil
}

func loadRateLimitConfig() qaratelimit.Config {
	cfg := qaratelimit.DefaultConfig()
	if v := os.Getenv("QA_RATE_LIMIT_GLOBAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GlobalLimit = n
		}
	}
	if v := os.Getenv("QA_RATE_LIMIT_USER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UserLimit = n
		}
	}
	return cfg
}

func loadLarkConfig(logger *slog.Logger) notifier.LarkConfig {
	enabled := os.Getenv("LARK_ENABLED") == "true"
	webhookURL := os.Getenv("LARK_WEBHOOK_URL")
	if !enabled || webhookURL == "" {
		logger.Warn("Lark messenger disabled, QA replies will fail to send")
		return notifier.LarkConfig{Enabled: false}
	}
	return notifier.LarkConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 10 * time.Second}
}

func loadWebhookConfig() webhook.Config {
	return webhook.Config{
		VerificationToken: os.Getenv("LARK_VERIFICATION_TOKEN"),
		EncryptKey:        os.Getenv("LARK_ENCRYPT_KEY"),
		BotOpenID:         os.Getenv("LARK_BOT_OPEN_ID"),
		DedupMaxSize:      10000,
		DedupTTLSeconds:   300,
		TaskPoolSize:      qaRateLimitCeiling(),
	}
}

// qaRateLimitCeiling sizes the detached-task worker pool to the global
// rate-limit ceiling, per the spec's bounded-worker-pool redesign note:
// the pool itself is the natural backpressure, so it need not exceed what
// the rate limiter would allow through anyway.
func qaRateLimitCeiling() int {
	cfg := loadRateLimitConfig()
	if cfg.GlobalLimit > 0 {
		return cfg.GlobalLimit
	}
	return 10
}

func qaServerPort() string {
	if v := os.Getenv("QA_SERVER_PORT"); v != "" {
		return v
	}
	return "8090"
}

func runServer(logger *slog.Logger, mux *http.ServeMux) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := ":" + qaServerPort()
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("qa event server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("qa event server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down qa event server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("qa event server shutdown failed", slog.Any("error", err))
	}
	logger.Info("qa event server stopped")
}
