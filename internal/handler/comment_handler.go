package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/homeboard/internal/metrics"
	"github.com/hitoshi/homeboard/internal/middleware"
	"github.com/hitoshi/homeboard/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, accountID, body string) (*model.Comment, error)
	Delete(ctx context.Context, accountID, commentID string) error
}

// CommentHandler はコメント投稿・削除のHTTPハンドラー。
type CommentHandler struct {
	comments     CommentServiceInterface
	collector    metrics.MetricsCollector
	cookieSecure bool
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(comments CommentServiceInterface, collector metrics.MetricsCollector, cookieSecure bool) *CommentHandler {
	return &CommentHandler{
		comments:     comments,
		collector:    collector,
		cookieSecure: cookieSecure,
	}
}

// Create はコメントを投稿する。
// POST /comments（要認証）
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  "コメントを投稿するにはログインしてください。",
			Category: "error",
		})
		return
	}

	body := r.FormValue("body")
	if _, err := h.comments.Create(r.Context(), account.ID, body); err != nil {
		slog.Warn("comment rejected",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		h.collector.RecordCommentRejected(failureReason(err))
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  commentErrorMessage(err),
			Category: "error",
		})
		return
	}

	h.collector.RecordCommentCreated()
	redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
		Message:  "コメントを投稿しました。",
		Category: "success",
	})
}

// Delete はコメントを削除する。自分のコメントのみ削除できる。
// POST /delete_comment/{id}（要認証）
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  "ログインしてください。",
			Category: "error",
		})
		return
	}

	commentID := chi.URLParam(r, "id")
	if err := h.comments.Delete(r.Context(), account.ID, commentID); err != nil {
		slog.Warn("comment delete failed",
			slog.String("account_id", account.ID),
			slog.String("comment_id", commentID),
			slog.String("error", err.Error()),
		)
		redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
			Message:  commentErrorMessage(err),
			Category: "error",
		})
		return
	}

	h.collector.RecordCommentDeleted()
	redirectWithFlash(w, r, "/comments", h.cookieSecure, Flash{
		Message:  "コメントを削除しました。",
		Category: "success",
	})
}

// commentErrorMessage はコメント操作のエラーからユーザー向けメッセージを取り出す。
func commentErrorMessage(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "処理に失敗しました。しばらく待ってから再度お試しください。"
}
