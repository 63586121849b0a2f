// Package comment はコメント掲示板のドメインロジックを提供する。
package comment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/homeboard/internal/model"
	"github.com/hitoshi/homeboard/internal/repository"
	"github.com/hitoshi/homeboard/internal/security"
)

// Service はコメント掲示板のサービス層。
// 一覧取得、投稿、所有者限定の削除を提供する。
type Service struct {
	comments  repository.CommentRepository
	sanitizer security.CommentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(comments repository.CommentRepository, sanitizer security.CommentSanitizerService) *Service {
	return &Service{
		comments:  comments,
		sanitizer: sanitizer,
	}
}

// List は全コメントを投稿者名付きで新しい順に返す。
func (s *Service) List(ctx context.Context) ([]model.CommentWithAuthor, error) {
	comments, err := s.comments.ListWithAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Create は認証済みアカウントのコメントを投稿する。
// 本文は空白除去・サニタイズ後に検証され、
// 空または上限超過の場合は永続化前に拒否される。
func (s *Service) Create(ctx context.Context, accountID, body string) (*model.Comment, error) {
	body = strings.TrimSpace(s.sanitizer.Sanitize(body))

	if body == "" {
		return nil, model.NewInvalidCommentError("本文が空です")
	}
	if length := utf8.RuneCountInString(body); length > model.CommentMaxLength {
		return nil, model.NewInvalidCommentError(
			fmt.Sprintf("本文が長すぎます（%d文字、上限%d文字）", length, model.CommentMaxLength),
		)
	}

	comment := &model.Comment{
		ID:        uuid.New().String(),
		Body:      body,
		AccountID: accountID,
		CreatedAt: time.Now(),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	slog.Info("comment created",
		slog.String("comment_id", comment.ID),
		slog.String("account_id", accountID),
	)
	return comment, nil
}

// Delete は指定コメントを削除する。
// 所有者以外が削除しようとした場合はForbiddenを返し、行は削除しない。
func (s *Service) Delete(ctx context.Context, accountID, commentID string) error {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to find comment: %w", err)
	}
	if comment == nil {
		return model.NewCommentNotFoundError(commentID)
	}

	if comment.AccountID != accountID {
		return model.NewForbiddenError()
	}

	if err := s.comments.DeleteByID(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	slog.Info("comment deleted",
		slog.String("comment_id", commentID),
		slog.String("account_id", accountID),
	)
	return nil
}
