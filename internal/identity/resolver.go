// Package identity は外部アイデンティティからローカルアカウントへの解決を提供する。
// アイデンティティとアカウントの対応付けロジックはこのパッケージにのみ存在する。
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/homeboard/internal/model"
	"github.com/hitoshi/homeboard/internal/repository"
)

// ErrMissingExternalID は外部IDを欠くアイデンティティを示す。
// 解決はいかなる書き込みよりも前に中断される。
var ErrMissingExternalID = errors.New("external identity has no external id")

// Resolver は検証済みExternalIdentityをちょうど1つのAccountへ対応付ける。
//
// 解決手順:
//  1. (provider, externalID) でアカウントを検索。ヒットすればそのまま返す（再訪ユーザー）。
//  2. emailが存在すればemailで検索。ヒットすれば別プロバイダー由来のアカウント
//     なので新しい外部IDをリンクして返す（プロバイダー横断のアカウント統合）。
//  3. どちらも無ければ新規アカウントを作成する。emailが無い場合も作成するが、
//     そのアカウントは以後emailによる統合の対象にならない。
//
// 一意性はストアの制約が権威的に強制する。挿入・リンク時の制約違反は
// 同一アイデンティティの同時サインインの競合を意味するため、
// 検索からやり直す（1回のみ再試行）。
type Resolver struct {
	accounts repository.AccountRepository
}

// NewResolver はResolverを生成する。
func NewResolver(accounts repository.AccountRepository) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve は外部アイデンティティをローカルアカウントへ解決する。
func (r *Resolver) Resolve(ctx context.Context, ident model.ExternalIdentity) (*model.Account, error) {
	if ident.ExternalID == "" {
		return nil, ErrMissingExternalID
	}
	if !ident.Provider.Valid() {
		return nil, fmt.Errorf("unsupported provider: %s", ident.Provider)
	}

	account, err := r.resolveOnce(ctx, ident)
	if err == nil {
		return account, nil
	}

	// 制約違反は同時サインインの競合。もう一方の書き込みが成立しているはず
	// なので、検索・リンク経路を1回だけやり直す。
	if errors.Is(err, repository.ErrUniqueViolation) {
		slog.Info("resolution raced with a concurrent sign-in, retrying lookup",
			slog.String("provider", string(ident.Provider)),
		)
		account, err = r.resolveOnce(ctx, ident)
		if err != nil {
			return nil, fmt.Errorf("resolution retry failed: %w", err)
		}
		return account, nil
	}

	return nil, err
}

// resolveOnce は検索→リンク→作成の1パスを実行する。
func (r *Resolver) resolveOnce(ctx context.Context, ident model.ExternalIdentity) (*model.Account, error) {
	// 1. 再訪ユーザー: (provider, externalID) での検索が最優先
	account, err := r.accounts.FindByProviderID(ctx, ident.Provider, ident.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by provider id: %w", err)
	}
	if account != nil {
		return account, nil
	}

	// 2. email一致による統合: 別プロバイダーで作成済みのアカウントにリンクする
	if ident.Email != "" {
		account, err = r.accounts.FindByEmail(ctx, ident.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find account by email: %w", err)
		}
		if account != nil {
			// 同一プロバイダーの別external_idが既に付いている場合はリンクせず、
			// 新規作成に進む（emailは重複不可のため外部IDのみのアカウントになる）。
			if existing := account.ExternalID(ident.Provider); existing == "" {
				if err := r.accounts.LinkProvider(ctx, account.ID, ident.Provider, ident.ExternalID, ident.Name); err != nil {
					return nil, err
				}
				linked, err := r.accounts.FindByID(ctx, account.ID)
				if err != nil {
					return nil, fmt.Errorf("failed to reload linked account: %w", err)
				}
				if linked == nil {
					return nil, fmt.Errorf("linked account disappeared: %s", account.ID)
				}
				slog.Info("linked external identity to existing account",
					slog.String("account_id", linked.ID),
					slog.String("provider", string(ident.Provider)),
				)
				return linked, nil
			} else if existing != ident.ExternalID {
				slog.Warn("email matches an account already linked to this provider",
					slog.String("account_id", account.ID),
					slog.String("provider", string(ident.Provider)),
				)
			}
		}
	}

	// 3. 新規アカウントの作成
	now := time.Now()
	newAccount := &model.Account{
		ID:        uuid.New().String(),
		Email:     ident.Email,
		Name:      ident.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newAccount.SetExternalID(ident.Provider, ident.ExternalID)

	// email一致アカウントが既に同一プロバイダーへリンク済みだった場合、
	// 同じemailを持たせると制約違反になるため、emailなしで作成する。
	if account != nil {
		newAccount.Email = ""
	}

	if err := r.accounts.Create(ctx, newAccount); err != nil {
		return nil, err
	}

	slog.Info("new account created",
		slog.String("account_id", newAccount.ID),
		slog.String("provider", string(ident.Provider)),
	)
	return newAccount, nil
}
