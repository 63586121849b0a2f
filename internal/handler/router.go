package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/homeboard/internal/metrics"
	"github.com/hitoshi/homeboard/internal/middleware"
)

// Pinger はヘルスチェックに使うデータベース接続のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	AccountResolver middleware.AccountResolver

	AuthService    AuthServiceInterface
	SessionManager SessionManagerInterface
	CommentService CommentServiceInterface
	CommentLister  CommentListerInterface

	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	DB Pinger

	CookieSecure bool
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Session → Logging → Metrics
//
// Sessionはロギングより先に実行する。アカウントをコンテキストに載せてから
// でないと、リクエストログのaccount_id属性が埋まらない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewSessionMiddleware(deps.AccountResolver))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))

	pageHandler := NewPageHandler(deps.CommentLister, deps.CookieSecure)
	authHandler := NewAuthHandler(deps.AuthService, deps.SessionManager, deps.Collector, deps.CookieSecure)
	commentHandler := NewCommentHandler(deps.CommentService, deps.Collector, deps.CookieSecure)

	// --- 認証不要のルート ---

	r.Get("/", pageHandler.Index)
	r.Get("/about", pageHandler.About)
	r.Get("/projects", pageHandler.Projects)
	r.Get("/contacts", pageHandler.Contacts)
	r.Get("/comments", pageHandler.Comments)

	// OAuthフロー
	r.Route("/login/{provider}", func(r chi.Router) {
		r.Get("/", authHandler.Login)
		r.Get("/authorized", authHandler.Callback)
	})

	// 運用エンドポイント
	r.Get("/healthz", healthzHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- 認証が必要なルート ---

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(deps.CookieSecure))

		r.Get("/profile", pageHandler.Profile)
		r.Get("/logout", authHandler.Logout)
		r.Post("/comments", commentHandler.Create)
		r.Post("/delete_comment/{id}", commentHandler.Delete)
	})

	return r
}

// RequireAuth は未認証リクエストをフラッシュメッセージ付きで/commentsへ
// リダイレクトするミドルウェアを返す。APIではなくページ遷移なので401は返さない。
func RequireAuth(cookieSecure bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := middleware.AccountFromContext(r.Context()); !ok {
				redirectWithFlash(w, r, "/comments", cookieSecure, Flash{
					Message:  "ログインしてください。",
					Category: "error",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// healthzHandler はデータベース接続を確認するヘルスチェックハンドラーを返す。
func healthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.Error("healthcheck failed", slog.String("error", err.Error()))
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
