// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/homeboard/internal/auth"
	"github.com/hitoshi/homeboard/internal/comment"
	"github.com/hitoshi/homeboard/internal/config"
	"github.com/hitoshi/homeboard/internal/database"
	"github.com/hitoshi/homeboard/internal/handler"
	"github.com/hitoshi/homeboard/internal/identity"
	"github.com/hitoshi/homeboard/internal/logger"
	"github.com/hitoshi/homeboard/internal/metrics"
	"github.com/hitoshi/homeboard/internal/model"
	"github.com/hitoshi/homeboard/internal/repository"
	"github.com/hitoshi/homeboard/internal/security"
	"github.com/hitoshi/homeboard/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)

	// 3. OAuthクライアントの初期化
	// 認証情報のないプロバイダーは無効クライアントとして登録される
	clients := make(map[model.Provider]*auth.Client)
	for provider, providerCfg := range map[model.Provider]config.ProviderConfig{
		model.ProviderYandex: cfg.Yandex,
		model.ProviderGoogle: cfg.Google,
	} {
		client, err := auth.NewClient(provider, providerCfg, cfg.ProviderTimeout, nil)
		if err != nil {
			return fmt.Errorf("failed to build %s client: %w", provider, err)
		}
		clients[provider] = client
		slog.Info("oauth provider configured",
			slog.String("provider", string(provider)),
			slog.Bool("enabled", client.Enabled()),
		)
	}

	// 4. ドメインサービスの初期化
	resolver := identity.NewResolver(accountRepo)
	authService := auth.NewService(clients, resolver)

	secret, err := session.LoadOrGenerateSecret(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("failed to load session secret: %w", err)
	}
	sessionManager := session.NewManager(sessionRepo, accountRepo, session.Config{
		Secret:         secret,
		SessionMaxAge:  cfg.SessionMaxAge,
		RememberMaxAge: cfg.RememberMaxAge,
	})

	sanitizer := security.NewCommentSanitizer()
	commentService := comment.NewService(commentRepo, sanitizer)

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:          slog.Default(),
		AccountResolver: sessionManager,

		AuthService:    authService,
		SessionManager: sessionManager,
		CommentService: commentService,
		CommentLister:  commentService,

		Collector: collector,
		Gatherer:  registry,

		DB: db,

		CookieSecure: cfg.CookieSecure,
	}

	router := handler.NewRouter(deps)

	// 7. 期限切れセッションの日次クリーンアップ
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	cleanupJob := session.NewCleanupJob(db, slog.Default())
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(jobCtx); err != nil {
			slog.Error("session cleanup failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(jobCtx); err != nil {
					slog.Error("session cleanup failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
