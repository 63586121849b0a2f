package handler

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/homeboard/internal/middleware"
	"github.com/hitoshi/homeboard/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// CommentListerInterface はコメント一覧の取得に必要なインターフェース。
type CommentListerInterface interface {
	List(ctx context.Context) ([]model.CommentWithAuthor, error)
}

// pageData はレイアウトテンプレートに渡す共通データ。
type pageData struct {
	Title    string
	Account  *model.Account
	Flash    *Flash
	Comments []model.CommentWithAuthor
}

// PageHandler はサーバーサイドレンダリングされるページのハンドラー。
type PageHandler struct {
	pages        map[string]*template.Template
	comments     CommentListerInterface
	cookieSecure bool
}

// NewPageHandler はPageHandlerを生成する。埋め込みテンプレートのパースに
// 失敗した場合はpanicする（起動時にのみ呼ばれる）。
func NewPageHandler(comments CommentListerInterface, cookieSecure bool) *PageHandler {
	names := []string{"index", "about", "projects", "contacts", "profile", "comments"}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		pages[name] = template.Must(template.ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		))
	}
	return &PageHandler{
		pages:        pages,
		comments:     comments,
		cookieSecure: cookieSecure,
	}
}

// render は共通レイアウトでページを描画する。
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, page string, data pageData) {
	account, _ := middleware.AccountFromContext(r.Context())
	data.Account = account
	data.Flash = popFlash(w, r, h.cookieSecure)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render page",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// Index はトップページを表示する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "index", pageData{Title: "ホーム"})
}

// About は自己紹介ページを表示する。
// GET /about
func (h *PageHandler) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "about", pageData{Title: "自己紹介"})
}

// Projects はプロジェクト一覧ページを表示する。
// GET /projects
func (h *PageHandler) Projects(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "projects", pageData{Title: "プロジェクト"})
}

// Contacts は連絡先ページを表示する。
// GET /contacts
func (h *PageHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "contacts", pageData{Title: "連絡先"})
}

// Profile はログイン中アカウントのプロフィールページを表示する。
// GET /profile（要認証）
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "profile", pageData{Title: "プロフィール"})
}

// Comments はコメント一覧ページを表示する。未認証でも閲覧できる。
// GET /comments
func (h *PageHandler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.List(r.Context())
	if err != nil {
		// 直近の書き込みが失敗していても一覧表示は継続する
		slog.Error("failed to list comments", slog.String("error", err.Error()))
		comments = nil
	}
	h.render(w, r, "comments", pageData{Title: "コメント", Comments: comments})
}
