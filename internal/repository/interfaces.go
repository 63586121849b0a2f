// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/homeboard/internal/model"
)

// ErrUniqueViolation はストアの一意制約違反を示す。
// 同一アイデンティティの同時サインインが競合した場合、
// Identity Resolverはこのエラーを検索・リンク経路の再試行シグナルとして扱う。
var ErrUniqueViolation = errors.New("unique constraint violation")

// AccountRepository はアカウントデータの永続化インターフェース。
// (provider, external_id) とemailの一意性はストアの制約が権威的に強制する。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByProviderID は指定プロバイダーの外部IDでアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderID(ctx context.Context, provider model.Provider, externalID string) (*model.Account, error)

	// FindByEmail はemailでアカウントを検索する。見つからない場合はnilを返す。
	// 空のemailでの検索は常にnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Create はアカウントを作成する。
	// 一意制約に違反した場合はErrUniqueViolationを返す。
	Create(ctx context.Context, account *model.Account) error

	// LinkProvider は既存アカウントに指定プロバイダーの外部IDを付与する。
	// アカウントの表示名が未設定の場合のみnameで埋める。
	// 一意制約に違反した場合はErrUniqueViolationを返す。
	LinkProvider(ctx context.Context, accountID string, provider model.Provider, externalID, name string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ListWithAuthors は全コメントを投稿者名付きで新しい順に返す。
	ListWithAuthors(ctx context.Context) ([]model.CommentWithAuthor, error)

	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// DeleteByID は指定IDのコメントを削除する。
	DeleteByID(ctx context.Context, id string) error
}
