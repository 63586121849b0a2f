// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "homeboard_flash"

// Flash は次に描画されるページへ渡す一時的な通知メッセージ。
// リダイレクトと対で明示的な値として受け渡す。
type Flash struct {
	Message  string `json:"message"`
	Category string `json:"category"` // success / error
}

// setFlash はフラッシュメッセージをCookieに保存する。
// 次のページ描画時にpopFlashで消費される。
func setFlash(w http.ResponseWriter, secure bool, flash Flash) {
	data, err := json.Marshal(flash)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash はフラッシュメッセージを取り出し、Cookieを削除する。
// メッセージがない場合はnilを返す。
func popFlash(w http.ResponseWriter, r *http.Request, secure bool) *Flash {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	// 消費したら即座にクリアする
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var flash Flash
	if err := json.Unmarshal(data, &flash); err != nil {
		return nil
	}
	return &flash
}

// redirectWithFlash はフラッシュメッセージを設定してからリダイレクトする。
func redirectWithFlash(w http.ResponseWriter, r *http.Request, url string, secure bool, flash Flash) {
	setFlash(w, secure, flash)
	http.Redirect(w, r, url, http.StatusSeeOther)
}
