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
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/vigilfeed/vigilfeed/internal/common/pagination"
	pgRepo "github.com/vigilfeed/vigilfeed/internal/infra/adapter/persistence/postgres"
	"github.com/vigilfeed/vigilfeed/internal/infra/db"

	artUC "github.com/vigilfeed/vigilfeed/internal/usecase/article"
	"github.com/vigilfeed/vigilfeed/internal/usecase/checkpoint"
	srcUC "github.com/vigilfeed/vigilfeed/internal/usecase/source"

	hhttp "github.com/vigilfeed/vigilfeed/internal/handler/http"
	harticle "github.com/vigilfeed/vigilfeed/internal/handler/http/article"
	hauth "github.com/vigilfeed/vigilfeed/internal/handler/http/auth"
	"github.com/vigilfeed/vigilfeed/internal/handler/http/requestid"
	hsrc "github.com/vigilfeed/vigilfeed/internal/handler/http/source"

	_ "github.com/vigilfeed/vigilfeed/docs" // swagger docs
)

// @title           Catchup Feed API
// @version         1.0
// @description     RSS/Atom フィード自動クロール・AI要約システムの REST API
// @description     記事とRSSソースの読み取り専用参照、全文検索、取り込みチェックポイントの参照機能を提供します。

// @contact.name   API Support
// @contact.url    https://github.com/yujitsuchiya/github.com/vigilfeed/vigilfeed
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT トークンによる認証。ヘッダーに "Bearer {token}" 形式で指定してください。

func main() {
	logger := initLogger()
	validateServiceToken(logger)
	validateJWTSecret(logger)
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	version := getVersion()
	serverComponents := setupServer(logger, database, version)

	runServer(logger, serverComponents, version)
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

// validateServiceToken validates SERVICE_TOKEN at startup. This API has a
// single audience (operator tooling), so there is exactly one credential
// to check, not a multi-user/role matrix.
func validateServiceToken(logger *slog.Logger) {
	if err := hauth.ValidateServiceToken(); err != nil {
		logger.Error("service token validation failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// validateJWTSecret validates the JWT_SECRET environment variable for security requirements.
func validateJWTSecret(logger *slog.Logger) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}
	// セキュリティ: 最小32文字（256ビット）を強制
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	// セキュリティ: よくある弱い秘密鍵を拒否
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler http.Handler
}

// setupServer configures and returns the HTTP handler with all routes and middleware.
func setupServer(logger *slog.Logger, database *sql.DB, version string) *ServerComponents {
	srcSvc := srcUC.Service{Repo: pgRepo.NewSourceRepo(database)}
	artSvc := artUC.Service{Repo: pgRepo.NewArticleRepo(database)}
	checkpointMgr := checkpoint.New(checkpoint.DefaultConfig(checkpointDir()))

	rootMux := setupRoutes(database, version, srcSvc, artSvc, checkpointMgr, logger)
	handler := applyMiddleware(logger, rootMux)

	return &ServerComponents{Handler: handler}
}

// checkpointDir returns the directory the worker's checkpoint.Manager writes
// to, so the admin API's checkpoint-status route reads the same snapshots.
func checkpointDir() string {
	dir := os.Getenv("CHECKPOINT_DIR")
	if dir == "" {
		dir = "/data/checkpoints"
	}
	return dir
}

// setupRoutes registers all HTTP routes (public and protected). There is no
// /auth/token endpoint: SERVICE_TOKEN's corresponding JWT is minted once by
// an operator (hauth.IssueServiceToken) and configured on the caller, so the
// admin API itself never issues credentials over HTTP.
func setupRoutes(
	database *sql.DB,
	version string,
	srcSvc srcUC.Service,
	artSvc artUC.Service,
	checkpointMgr *checkpoint.Manager,
	logger *slog.Logger,
) *http.ServeMux {
	// レート制限: 検索エンドポイントは1分間に100リクエストまで
	searchRateLimiter := hhttp.NewRateLimiter(100, 1*time.Minute)

	publicMux := http.NewServeMux()

	// ヘルスチェックエンドポイント（認証不要）
	publicMux.Handle("/health", &hhttp.HealthHandler{DB: database, Version: version})
	publicMux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	publicMux.Handle("/live", &hhttp.LiveHandler{})
	publicMux.Handle("/metrics", hhttp.MetricsHandler())

	// Swagger UI（認証不要）
	publicMux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Load pagination configuration
	paginationCfg := pagination.LoadFromEnv()

	privateMux := http.NewServeMux()
	hsrc.Register(privateMux, srcSvc, searchRateLimiter)
	harticle.Register(privateMux, artSvc, paginationCfg, logger, searchRateLimiter)
	privateMux.Handle("GET    /checkpoint-status", &hhttp.CheckpointStatusHandler{Manager: checkpointMgr})

	// Apply authentication middleware
	protected := hauth.Authz(privateMux)

	rootMux := http.NewServeMux()
	rootMux.Handle("/health", publicMux)
	rootMux.Handle("/ready", publicMux)
	rootMux.Handle("/live", publicMux)
	rootMux.Handle("/metrics", publicMux)
	rootMux.Handle("/swagger/", publicMux)
	rootMux.Handle("/", protected)

	return rootMux
}

// applyMiddleware wraps the handler with middleware chain.
// Middleware order: Request ID → Recovery → Logging → Body Limit → Metrics
func applyMiddleware(logger *slog.Logger, handler http.Handler) http.Handler {
	middlewareChain := handler

	// Apply in reverse order (innermost to outermost)
	middlewareChain = hhttp.MetricsMiddleware(middlewareChain)
	middlewareChain = hhttp.LimitRequestBody(1 << 20)(middlewareChain) // 1MB limit
	middlewareChain = hhttp.Logging(logger)(middlewareChain)
	middlewareChain = hhttp.Recover(logger)(middlewareChain)
	middlewareChain = requestid.Middleware(middlewareChain)

	return middlewareChain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, components *ServerComponents, version string) {
	// Create a context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", ":8080"),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
