// Package auth はOAuth2認可コードフローと認証オーケストレーションを提供する。
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/homeboard/internal/config"
	"github.com/hitoshi/homeboard/internal/model"
)

// プロバイダー呼び出しの失敗分類。errors.Isで判定する。
var (
	// ErrProviderDisabled は認証情報未設定のプロバイダーを示す。
	ErrProviderDisabled = errors.New("provider disabled")
	// ErrUnreachable はネットワーク障害・タイムアウトを示す。
	ErrUnreachable = errors.New("provider unreachable")
	// ErrTokenRejected はトークンエンドポイントの非2xx応答を示す。
	ErrTokenRejected = errors.New("token exchange rejected")
	// ErrMalformedUserinfo はuserinfo応答の必須フィールド欠落を示す。
	ErrMalformedUserinfo = errors.New("malformed userinfo")
)

// Profile は1プロバイダー分のエンドポイントとフィールド対応表。
// プロバイダー固有の差異（外部IDのフィールド名等）は条件分岐ではなく
// この表で吸収する。プロバイダー追加はエントリ追加のみで済む。
type Profile struct {
	Provider    model.Provider
	AuthURL     string
	TokenURL    string
	UserinfoURL string
	Scopes      []string
	IDField     string   // 外部IDのJSONフィールド名
	EmailField  string   // メールアドレスのJSONフィールド名
	NameFields  []string // 表示名の候補フィールド（先頭から順に採用）
}

// profiles は対応プロバイダーの対応表。
var profiles = map[model.Provider]Profile{
	model.ProviderYandex: {
		Provider:    model.ProviderYandex,
		AuthURL:     "https://oauth.yandex.ru/authorize",
		TokenURL:    "https://oauth.yandex.ru/token",
		UserinfoURL: "https://login.yandex.ru/info?format=json",
		Scopes:      []string{"login:info", "login:email"},
		IDField:     "id",
		EmailField:  "default_email",
		NameFields:  []string{"real_name", "display_name"},
	},
	model.ProviderGoogle: {
		Provider:    model.ProviderGoogle,
		AuthURL:     "https://accounts.google.com/o/oauth2/auth",
		TokenURL:    "https://oauth2.googleapis.com/token",
		UserinfoURL: "https://www.googleapis.com/oauth2/v3/userinfo",
		Scopes:      []string{"openid", "email", "profile"},
		IDField:     "sub",
		EmailField:  "email",
		NameFields:  []string{"name", "given_name"},
	},
}

// ClientOverrides はテスト用にエンドポイントURLを差し替えるための設定。
type ClientOverrides struct {
	AuthURL     string
	TokenURL    string
	UserinfoURL string
}

// Client は1プロバイダーに対するOAuth2認可コードグラントを実行する。
// 静的な設定以外の状態は保持しない。
type Client struct {
	profile Profile
	config  config.ProviderConfig
	http    *http.Client
}

// NewClient はClientを生成する。未対応のプロバイダーはエラーを返す。
// timeoutはトークン交換・userinfo取得の両方に適用される。
func NewClient(provider model.Provider, cfg config.ProviderConfig, timeout time.Duration, overrides *ClientOverrides) (*Client, error) {
	profile, ok := profiles[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
	if overrides != nil {
		if overrides.AuthURL != "" {
			profile.AuthURL = overrides.AuthURL
		}
		if overrides.TokenURL != "" {
			profile.TokenURL = overrides.TokenURL
		}
		if overrides.UserinfoURL != "" {
			profile.UserinfoURL = overrides.UserinfoURL
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		profile: profile,
		config:  cfg,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Provider はこのクライアントが担当するプロバイダーを返す。
func (c *Client) Provider() model.Provider {
	return c.profile.Provider
}

// Enabled は認証情報が設定済みかどうかを返す。
func (c *Client) Enabled() bool {
	return c.config.Enabled()
}

// LoginURL はプロバイダーの認可エンドポイントURLを構築する。
// ネットワーク呼び出しは行わない。認証情報未設定の場合のみ失敗する。
func (c *Client) LoginURL(state string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("%w: %s", ErrProviderDisabled, c.profile.Provider)
	}

	params := url.Values{
		"client_id":     {c.config.ClientID},
		"redirect_uri":  {c.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {strings.Join(c.profile.Scopes, " ")},
		"state":         {state},
	}
	sep := "?"
	if strings.Contains(c.profile.AuthURL, "?") {
		sep = "&"
	}
	return c.profile.AuthURL + sep + params.Encode(), nil
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は一度限りの認可コードをアクセストークンに交換する。
// client id/secretで認証したサーバー間POSTを行う。
// ネットワーク障害はErrUnreachable、非2xx応答はErrTokenRejectedで返す。
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("%w: %s", ErrProviderDisabled, c.profile.Provider)
	}

	data := url.Values{
		"code":          {code},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"redirect_uri":  {c.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.profile.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request to %s failed: %v", ErrUnreachable, c.profile.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrTokenRejected, resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("%w: failed to parse token response: %v", ErrTokenRejected, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrTokenRejected)
	}

	return tokenResp.AccessToken, nil
}

// FetchIdentity はuserinfoエンドポイントに対して認証付きGETを行い、
// プロバイダー固有のJSONフィールドを正規化されたExternalIdentityに写像する。
// 外部IDが取得できない場合はErrMalformedUserinfoを返す。
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (*model.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profile.UserinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo request to %s failed: %v", ErrUnreachable, c.profile.Provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read userinfo response: %v", ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: userinfo fetch status %d: %s", ErrTokenRejected, resp.StatusCode, string(body))
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse userinfo response: %v", ErrMalformedUserinfo, err)
	}

	externalID := stringField(raw, c.profile.IDField)
	if externalID == "" {
		return nil, fmt.Errorf("%w: missing %q in userinfo response", ErrMalformedUserinfo, c.profile.IDField)
	}

	ident := &model.ExternalIdentity{
		Provider:   c.profile.Provider,
		ExternalID: externalID,
		Email:      stringField(raw, c.profile.EmailField),
	}
	for _, field := range c.profile.NameFields {
		if name := stringField(raw, field); name != "" {
			ident.Name = name
			break
		}
	}

	return ident, nil
}

// stringField はJSONオブジェクトから文字列フィールドを取り出す。
// 欠落・文字列以外の場合は空文字列を返す。
func stringField(raw map[string]any, key string) string {
	v, ok := raw[key].(string)
	if !ok {
		return ""
	}
	return v
}
