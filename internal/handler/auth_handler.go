package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/homeboard/internal/metrics"
	"github.com/hitoshi/homeboard/internal/middleware"
	"github.com/hitoshi/homeboard/internal/model"
	"github.com/hitoshi/homeboard/internal/session"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthRememberCookie = "oauth_remember"

	// stateCookieMaxAge はOAuthフロー完了までの猶予（秒）。
	stateCookieMaxAge = 600
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	ProviderEnabled(provider model.Provider) bool
	LoginURL(provider model.Provider, state string) (string, error)
	HandleCallback(ctx context.Context, provider model.Provider, code string) (*model.Account, error)
}

// SessionManagerInterface はセッションの発行と破棄のインターフェース。
type SessionManagerInterface interface {
	Establish(ctx context.Context, accountID string, remember bool) (*session.Credential, error)
	Terminate(ctx context.Context, token string) error
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	auth         AuthServiceInterface
	sessions     SessionManagerInterface
	collector    metrics.MetricsCollector
	cookieSecure bool
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(auth AuthServiceInterface, sessions SessionManagerInterface, collector metrics.MetricsCollector, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		sessions:     sessions,
		collector:    collector,
		cookieSecure: cookieSecure,
	}
}

// Login はOAuthフローを開始する。
// GET /login/{provider}?remember=1
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))
	if !provider.Valid() || !h.auth.ProviderEnabled(provider) {
		redirectWithFlash(w, r, "/", h.cookieSecure, Flash{
			Message:  model.NewProviderDisabledError(string(provider)).Message,
			Category: "error",
		})
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// remember指定はプロバイダー往復をまたいでCookieで運ぶ
	remember := "0"
	if r.URL.Query().Get("remember") == "1" {
		remember = "1"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthRememberCookie,
		Value:    remember,
		Path:     "/",
		MaxAge:   stateCookieMaxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url, err := h.auth.LoginURL(provider, state)
	if err != nil {
		redirectWithFlash(w, r, "/", h.cookieSecure, Flash{
			Message:  userMessage(err),
			Category: "error",
		})
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// いかなる失敗もフラッシュメッセージ付きの/commentsへのリダイレクトに変換し、
// ローカル状態（アカウント・セッション）を変更しない。
// GET /login/{provider}/authorized?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))
	if !provider.Valid() {
		redirectWithFlash(w, r, "/", h.cookieSecure, Flash{
			Message:  model.NewProviderDisabledError(string(provider)).Message,
			Category: "error",
		})
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("provider", string(provider)))
		h.collector.RecordLoginFailure(string(provider), "state_mismatch")
		// 古いstate/rememberクッキーを残さない
		clearCookie(w, oauthStateCookie, h.cookieSecure)
		clearCookie(w, oauthRememberCookie, h.cookieSecure)
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  model.NewTokenRejectedError(string(provider)).Message,
			Category: "error",
		})
		return
	}
	clearCookie(w, oauthStateCookie, h.cookieSecure)

	// remember指定の回収
	remember := false
	if c, err := r.Cookie(oauthRememberCookie); err == nil {
		remember = c.Value == "1"
	}
	clearCookie(w, oauthRememberCookie, h.cookieSecure)

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.collector.RecordLoginFailure(string(provider), "missing_code")
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  model.NewTokenRejectedError(string(provider)).Message,
			Category: "error",
		})
		return
	}

	// 3. トークン交換・userinfo取得・アカウント解決
	start := time.Now()
	account, err := h.auth.HandleCallback(r.Context(), provider, code)
	h.collector.RecordProviderLatency(string(provider), time.Since(start))
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		h.collector.RecordLoginFailure(string(provider), failureReason(err))
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  userMessage(err),
			Category: "error",
		})
		return
	}

	// 4. セッション発行とCookie設定
	cred, err := h.sessions.Establish(r.Context(), account.ID, remember)
	if err != nil {
		slog.Error("failed to establish session",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		h.collector.RecordLoginFailure(string(provider), "session_error")
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  "ログイン処理に失敗しました。しばらく待ってから再度お試しください。",
			Category: "error",
		})
		return
	}

	// MaxAge 0 はブラウザセッション限りのCookieになる（remember=false）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cred.Token,
		Path:     "/",
		MaxAge:   cred.MaxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.collector.RecordLoginSuccess(string(provider))
	redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
		Message:  "ログインしました。",
		Category: "success",
	})
}

// Logout はセッションを破棄してCookieをクリアする。
// GET /logout（要認証）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Terminate(r.Context(), cookie.Value); err != nil {
			// 破棄に失敗してもCookieはクリアする
			slog.Error("failed to terminate session", slog.String("error", err.Error()))
		}
	}
	clearCookie(w, middleware.SessionCookieName, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusFound)
}

// userMessage はエラーからユーザー向けメッセージを取り出す。
func userMessage(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "ログイン処理に失敗しました。しばらく待ってから再度お試しください。"
}

// failureReason はメトリクスのラベルに使う失敗理由を返す。
func failureReason(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}

// clearCookie は指定した名前のCookieを削除する。
func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
