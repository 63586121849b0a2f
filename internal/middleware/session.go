// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/homeboard/internal/model"
)

// SessionCookieName はセッショントークンを運ぶCookieの名前。
const SessionCookieName = "homeboard_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// accountContextKey はリクエストコンテキストに認証済みアカウントを格納するためのキー。
var accountContextKey = contextKey("account")

// AccountResolver はセッショントークンからアカウントを解決するインターフェース。
// session.Managerの部分集合として定義する。
type AccountResolver interface {
	CurrentAccount(ctx context.Context, token string) (*model.Account, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 解決できたアカウントをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは通す（公開ページと認証必須ページの判定はルーター側で行う）。
func NewSessionMiddleware(resolver AccountResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			account, err := resolver.CurrentAccount(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if account == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithAccount(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext はリクエストコンテキストから認証済みアカウントを取得する。
// 未認証の場合は (nil, false) を返す。
func AccountFromContext(ctx context.Context) (*model.Account, bool) {
	account, ok := ctx.Value(accountContextKey).(*model.Account)
	if !ok || account == nil {
		return nil, false
	}
	return account, true
}

// ContextWithAccount はコンテキストにアカウントを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}
