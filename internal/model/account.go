// Package model はドメインモデルを定義する。
package model

import "time"

// Provider はOAuth認証プロバイダーの識別子。
type Provider string

const (
	// ProviderYandex はYandex OAuthを示す。
	ProviderYandex Provider = "yandex"
	// ProviderGoogle はGoogle OAuthを示す。
	ProviderGoogle Provider = "google"
)

// Valid は既知のプロバイダーかどうかを返す。
func (p Provider) Valid() bool {
	return p == ProviderYandex || p == ProviderGoogle
}

// Account はサイトのローカルアカウントを表す。
// 外部ID（YandexID/GoogleID）とEmailは省略可能だが、
// 存在する場合は全アカウントを通じて一意でなければならない。
type Account struct {
	ID        string
	YandexID  string // 空文字列は未連携を表す
	GoogleID  string // 空文字列は未連携を表す
	Email     string // 空文字列は未設定を表す
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExternalID は指定プロバイダーの外部IDを返す。
func (a *Account) ExternalID(p Provider) string {
	switch p {
	case ProviderYandex:
		return a.YandexID
	case ProviderGoogle:
		return a.GoogleID
	default:
		return ""
	}
}

// SetExternalID は指定プロバイダーの外部IDを設定する。
func (a *Account) SetExternalID(p Provider, externalID string) {
	switch p {
	case ProviderYandex:
		a.YandexID = externalID
	case ProviderGoogle:
		a.GoogleID = externalID
	}
}

// ExternalIdentity はOAuthプロバイダーで検証済みの外部アイデンティティを表す。
// Provider Clientがプロバイダー固有のJSONフィールドを正規化した結果。
type ExternalIdentity struct {
	Provider   Provider
	ExternalID string
	Email      string
	Name       string
}

// Session はアカウントのログインセッションを表す。
type Session struct {
	ID        string
	AccountID string
	Remember  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}
