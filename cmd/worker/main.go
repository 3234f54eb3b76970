package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	pgRepo "github.com/vigilfeed/vigilfeed/internal/infra/adapter/persistence/postgres"
	"github.com/vigilfeed/vigilfeed/internal/infra/db"
	"github.com/vigilfeed/vigilfeed/internal/infra/fetcher"
	"github.com/vigilfeed/vigilfeed/internal/infra/notifier"
	"github.com/vigilfeed/vigilfeed/internal/infra/scraper"
	"github.com/vigilfeed/vigilfeed/internal/infra/summarizer"
	workerPkg "github.com/vigilfeed/vigilfeed/internal/infra/worker"

	domainfetch "github.com/vigilfeed/vigilfeed/internal/domain/fetch"
	"github.com/vigilfeed/vigilfeed/internal/usecase/checkpoint"
	"github.com/vigilfeed/vigilfeed/internal/usecase/content"
	"github.com/vigilfeed/vigilfeed/internal/usecase/enrich"
	fetchUC "github.com/vigilfeed/vigilfeed/internal/usecase/fetch"
	"github.com/vigilfeed/vigilfeed/internal/usecase/fetch/adapter"
	"github.com/vigilfeed/vigilfeed/internal/usecase/publish"
	"github.com/vigilfeed/vigilfeed/internal/usecase/schedule"
	"github.com/vigilfeed/vigilfeed/internal/usecase/score"

	"github.com/vigilfeed/vigilfeed/internal/domain/entity"
)

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM sources LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

// main dispatches the CLI surface: `run` (daily cron, default), `run
// --once` (a single end-to-end pass), `evaluate` (read-only source
// quality report), `checkpoint-status`, and `clear-checkpoint`. Every
// path exits 0 on success and 1 on any fatal error.
func main() {
	logger := initLogger()
	cmdName, once := parseCommand(os.Args[1:])

	switch cmdName {
	case "checkpoint-status":
		runCheckpointStatus(logger)
		return
	case "clear-checkpoint":
		runClearCheckpoint(logger)
		return
	case "run", "evaluate":
		// fall through to the DB-backed paths below.
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\nusage: worker [run [--once]|evaluate|checkpoint-status|clear-checkpoint]\n", cmdName)
		os.Exit(1)
	}

	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cmdName == "evaluate" {
		runEvaluate(ctx, logger, database)
		return
	}

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()

	healthAddr := fmt.Sprintf(":%d", healthPortFromEnv())
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()
	logger.Info("health check server started", slog.String("addr", healthAddr))

	metricsServer := startMetricsServer(ctx, logger, nil)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	sched := setupScheduler(logger, database)

	healthServer.SetReady(true)
	logger.Info("worker marked as ready")

	if once {
		if err := sched.RunOnce(ctx); err != nil {
			logger.Error("one-shot run failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

// parseCommand reads the first positional argument as the subcommand
// (defaulting to "run" when none is given, so the container entrypoint
// needs no change) and scans the rest for a --once flag.
func parseCommand(args []string) (cmdName string, once bool) {
	if len(args) == 0 {
		return "run", false
	}
	cmdName = args[0]
	fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	onceFlag := fs.Bool("once", false, "run a single end-to-end pass instead of the daily cron loop")
	fs.SetOutput(os.Stderr)
	_ = fs.Parse(args[1:])
	return cmdName, *onceFlag
}

// openCheckpointManager builds a Checkpointer against CHECKPOINT_DIR
// without the rest of setupScheduler's wiring, for the two CLI
// subcommands that only ever touch checkpoint state.
func openCheckpointManager() *checkpoint.Manager {
	checkpointDir := os.Getenv("CHECKPOINT_DIR")
	if checkpointDir == "" {
		checkpointDir = "/data/checkpoints"
	}
	return checkpoint.New(checkpoint.DefaultConfig(checkpointDir))
}

// runCheckpointStatus prints the current fetch/process checkpoint phase
// and counters, then exits 0. It never touches the database.
func runCheckpointStatus(logger *slog.Logger) {
	status := openCheckpointManager().GetStatus()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "fetch phase\t%s\n", status.FetchPhase)
	fmt.Fprintf(w, "fetch completed\t%d/%d\n", status.FetchCompleted, status.FetchTotal)
	fmt.Fprintf(w, "fetch failed\t%d\n", status.FetchFailed)
	fmt.Fprintf(w, "process phase\t%s\n", status.ProcessPhase)
	fmt.Fprintf(w, "process done\t%d/%d\n", status.ProcessDone, status.ProcessTotal)
	fmt.Fprintf(w, "process failed\t%d\n", status.ProcessFailed)
	if err := w.Flush(); err != nil {
		logger.Error("checkpoint-status: failed to write report", slog.Any("error", err))
		os.Exit(1)
	}
}

// runClearCheckpoint discards any in-progress fetch/process checkpoint,
// forcing the next run to start from scratch.
func runClearCheckpoint(logger *slog.Logger) {
	if err := openCheckpointManager().Clear(); err != nil {
		logger.Error("clear-checkpoint failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("checkpoint cleared")
}

// runEvaluate is the read-only "subscription-source quality pass" named
// by spec §6: it re-scores every unpushed article with the baseline
// PriorityScorer (C7) and prints a ranked table. It makes no LLM calls
// and mutates nothing, so it is safe to run in CI against a staging DB.
func runEvaluate(ctx context.Context, logger *slog.Logger, database *sql.DB) {
	store := pgRepo.NewArticleStore(database)
	scorer := scorerAdapter{s: score.New()}

	unpushed, err := store.Unpushed(ctx)
	if err != nil {
		logger.Error("evaluate: failed to load unpushed articles", slog.Any("error", err))
		os.Exit(1)
	}

	type scored struct {
		article entity.Article
		score   float64
	}
	ranked := make([]scored, 0, len(unpushed))
	for _, a := range unpushed {
		ranked = append(ranked, scored{article: a, score: scorer.Score(ctx, &a)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "score\tsource\ttitle\n")
	for _, r := range ranked {
		fmt.Fprintf(w, "%.1f\t%s\t%s\n", r.score, r.article.Source, r.article.Title)
	}
	if err := w.Flush(); err != nil {
		logger.Error("evaluate: failed to write report", slog.Any("error", err))
		os.Exit(1)
	}
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and waits for migrations to complete.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	waitForMigrations(logger, database)
	return database
}

// setupScheduler wires the daily pipeline (C1-C9): every Fetcher adapter
// into a FetcherManager, the Checkpointer, the optional ContentProcessor
// and Enricher, the PriorityScorer, and the TieredPusher dispatching
// through the Lark Messenger, all driving one schedule.Scheduler.
func setupScheduler(logger *slog.Logger, database *sql.DB) *schedule.Scheduler {
	store := pgRepo.NewArticleStore(database)

	feedHTTPClient := createHTTPClient()
	feedFetcher := scraper.NewRSSFetcher(feedHTTPClient)

	checkpointDir := os.Getenv("CHECKPOINT_DIR")
	if checkpointDir == "" {
		checkpointDir = "/data/checkpoints"
	}
	checkpoints := checkpoint.New(checkpoint.DefaultConfig(checkpointDir))
	githubStateFile := filepath.Join(checkpointDir, "github_seen.json")

	manager := fetchUC.NewManager(fetchUC.DefaultManagerConfig(), buildFetchers(feedFetcher, githubStateFile)...)

	var processor schedule.ContentProcessor
	contentFetchConfig, err := fetcher.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("failed to load content fetch configuration, content processing disabled", slog.Any("error", err))
	} else if contentFetchConfig.Enabled {
		readability := fetcher.NewReadabilityFetcher(contentFetchConfig)
		processor = content.NewProcessor(logger, content.Config{Threshold: contentFetchConfig.Threshold}, readability)
		logger.Info("content processing enabled", slog.Int("threshold", contentFetchConfig.Threshold))
	}

	enricher := enrich.New(createSummarizer(logger))

	scorer := scorerAdapter{s: score.New()}

	larkCfg := loadLarkConfig(logger)
	messenger := notifier.NewLarkMessenger(larkCfg)
	pusher := publish.New(publish.IdentitySelector{}, messenger, publish.DefaultConfig())

	cfg := loadScheduleConfig(logger)
	logger.Info("scheduler configuration loaded",
		slog.String("schedule_time", cfg.ScheduleTime),
		slog.String("timezone", cfg.Timezone),
		slog.Int("worker_pool", cfg.WorkerPool))

	return schedule.New(logger, cfg, manager, store, checkpoints, processor, enricher, scorer, pusher)
}

// scorerAdapter adapts score.Scorer's (Result, reasons) return onto the
// schedule.Scorer port, which only needs the numeric priority.
type scorerAdapter struct{ s *score.Scorer }

func (a scorerAdapter) Score(ctx context.Context, article *entity.Article) float64 {
	return a.s.Score(ctx, article).Score
}

// buildFetchers constructs every C1 adapter with its default
// configuration. RSS-shaped adapters (arxiv, dblp, blog) share the one
// FeedFetcher; the rest own their HTTP client internally. githubStateFile
// points GitHub's seen-repo suppression state at the same volume as the
// Checkpointer so it survives a worker restart.
func buildFetchers(feedFetcher fetchUC.FeedFetcher, githubStateFile string) []domainfetch.Fetcher {
	githubCfg := adapter.DefaultGitHubConfig()
	githubCfg.StateFile = githubStateFile

	return []domainfetch.Fetcher{
		adapter.NewArxiv(adapter.DefaultArxivConfig(), feedFetcher),
		adapter.NewDBLP(adapter.DefaultDBLPConfig(), feedFetcher),
		adapter.NewBlog(adapter.DefaultBlogConfig(), feedFetcher),
		adapter.NewNVD(adapter.DefaultNVDConfig()),
		adapter.NewKEV(adapter.DefaultKEVConfig()),
		adapter.NewHuggingFace(adapter.DefaultHuggingFaceConfig()),
		adapter.NewPwC(adapter.DefaultPwCConfig()),
		adapter.NewGitHub(githubCfg),
		adapter.NewHunyuan(adapter.DefaultHunyuanConfig()),
		adapter.NewAnthropicRed(30),
		adapter.NewAtumBlog(30),
	}
}

// createSummarizer creates a summarizer based on the SUMMARIZER_TYPE environment variable.
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
		logger.Info("Using Claude API for summarization", slog.String("type", "claude"))
		return summarizer.NewClaude(apiKey)
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is required when SUMMARIZER_TYPE=openai")
			os.Exit(1)
		}
		cfg, err := summarizer.LoadOpenAIConfig()
		if err != nil {
			logger.Error("Failed to load OpenAI configuration", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Using OpenAI API for summarization",
			slog.String("type", "openai"),
			slog.Int("character_limit", cfg.GetCharacterLimit()))
		return summarizer.NewOpenAI(apiKey, cfg)
	default:
		logger.Error("Invalid SUMMARIZER_TYPE",
			slog.String("type", summarizerType),
			slog.String("expected", "openai or claude"))
		os.Exit(1)
		return nil
	}
}

// createHTTPClient creates an HTTP client with timeouts and connection pooling.
// TLS 1.2+ is enforced for security.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
			},
		},
	}
}

// loadLarkConfig loads Lark custom-bot webhook configuration from the
// environment, following loadDiscordConfig/loadSlackConfig's validation
// shape from the teacher's original per-article notifier setup.
//
// Environment variables:
//   - LARK_ENABLED: Boolean flag to enable the Lark messenger (default: false)
//   - LARK_WEBHOOK_URL: Lark custom-bot webhook URL (required if enabled)
func loadLarkConfig(logger *slog.Logger) notifier.LarkConfig {
	enabled := os.Getenv("LARK_ENABLED") == "true"
	webhookURL := os.Getenv("LARK_WEBHOOK_URL")

	if !enabled {
		return notifier.LarkConfig{Enabled: false}
	}
	if webhookURL == "" {
		logger.Warn("Lark webhook URL is empty, disabling messenger")
		return notifier.LarkConfig{Enabled: false}
	}

	return notifier.LarkConfig{Enabled: true, WebhookURL: webhookURL, Timeout: 10 * time.Second}
}

// loadScheduleConfig loads the daily run's schedule time, timezone, chat
// target, and process-stage worker pool size from the environment.
//
// Environment variables:
//   - SCHEDULE_TIME: "HH:MM" local trigger time (default "08:00")
//   - SCHEDULE_TIMEZONE: IANA timezone name (default "UTC")
//   - LARK_CHAT_ID: target chat for the curated push
//   - PROCESS_WORKER_POOL: bounded concurrency for the process stage (default 10)
func loadScheduleConfig(logger *slog.Logger) schedule.Config {
	cfg := schedule.DefaultConfig()

	if v := os.Getenv("SCHEDULE_TIME"); v != "" {
		if _, err := time.Parse("15:04", v); err != nil {
			logger.Warn("invalid SCHEDULE_TIME, using default", slog.String("value", v), slog.Any("error", err))
		} else {
			cfg.ScheduleTime = v
		}
	}
	if v := os.Getenv("SCHEDULE_TIMEZONE"); v != "" {
		if _, err := time.LoadLocation(v); err != nil {
			logger.Warn("invalid SCHEDULE_TIMEZONE, using default", slog.String("value", v), slog.Any("error", err))
		} else {
			cfg.Timezone = v
		}
	}
	cfg.ChatID = os.Getenv("LARK_CHAT_ID")
	if v := os.Getenv("PROCESS_WORKER_POOL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WorkerPool = n
		}
	}
	return cfg
}

func healthPortFromEnv() int {
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 9091
}
