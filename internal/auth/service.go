package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/homeboard/internal/model"
)

// IdentityResolver は検証済み外部アイデンティティをローカルアカウントへ
// 解決するインターフェース。identity.Resolverの部分集合として定義する。
type IdentityResolver interface {
	Resolve(ctx context.Context, ident model.ExternalIdentity) (*model.Account, error)
}

// Service はOAuthログインフローのオーケストレーションを提供する。
// プロバイダークライアント群とIdentity Resolverを束ね、
// 失敗をユーザー提示用のAppErrorに変換する責務を持つ。
type Service struct {
	clients  map[model.Provider]*Client
	resolver IdentityResolver
}

// NewService はServiceを生成する。
func NewService(clients map[model.Provider]*Client, resolver IdentityResolver) *Service {
	return &Service{
		clients:  clients,
		resolver: resolver,
	}
}

// ProviderEnabled は指定プロバイダーが設定済みかどうかを返す。
func (s *Service) ProviderEnabled(provider model.Provider) bool {
	client, ok := s.clients[provider]
	return ok && client.Enabled()
}

// LoginURL は指定プロバイダーの認可リダイレクトURLを構築する。
// プロバイダー未設定の場合はProviderDisabledのAppErrorを返す。
func (s *Service) LoginURL(provider model.Provider, state string) (string, error) {
	client, ok := s.clients[provider]
	if !ok {
		return "", model.NewProviderDisabledError(string(provider))
	}

	url, err := client.LoginURL(state)
	if err != nil {
		return "", s.toAppError(provider, err)
	}
	return url, nil
}

// HandleCallback はOAuthコールバックを処理する。
// トークン交換→userinfo取得→アカウント解決を順に実行し、
// 失敗時はローカル状態を一切変更せずAppErrorを返す。
func (s *Service) HandleCallback(ctx context.Context, provider model.Provider, code string) (*model.Account, error) {
	client, ok := s.clients[provider]
	if !ok {
		return nil, model.NewProviderDisabledError(string(provider))
	}

	// 1. 認可コードをアクセストークンに交換
	token, err := client.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("token exchange failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		return nil, s.toAppError(provider, err)
	}

	// 2. userinfoを取得し正規化されたアイデンティティへ写像
	ident, err := client.FetchIdentity(ctx, token)
	if err != nil {
		slog.Warn("userinfo fetch failed",
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
		return nil, s.toAppError(provider, err)
	}

	// 3. ローカルアカウントへ解決（検索・リンク・作成）
	account, err := s.resolver.Resolve(ctx, *ident)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	slog.Info("user logged in",
		slog.String("account_id", account.ID),
		slog.String("provider", string(provider)),
	)

	return account, nil
}

// toAppError はプロバイダークライアントのsentinelエラーを
// ユーザー提示用のAppErrorに変換する。
func (s *Service) toAppError(provider model.Provider, err error) error {
	switch {
	case errors.Is(err, ErrProviderDisabled):
		return model.NewProviderDisabledError(string(provider))
	case errors.Is(err, ErrUnreachable):
		return model.NewProviderUnreachableError(string(provider))
	case errors.Is(err, ErrMalformedUserinfo):
		return model.NewMalformedUserinfoError(string(provider))
	case errors.Is(err, ErrTokenRejected):
		return model.NewTokenRejectedError(string(provider))
	default:
		return err
	}
}
