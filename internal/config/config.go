// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DeployMode はデプロイ環境を表す。
// リダイレクトURIの既定値とCookieのSecureフラグの選択に使用する。
type DeployMode string

const (
	// DeployModeLocal はローカル開発環境を示す。
	DeployModeLocal DeployMode = "local"
	// DeployModeRemote は公開環境を示す。
	DeployModeRemote DeployMode = "remote"
)

// ProviderConfig は1つのOAuthプロバイダーの認証情報を保持する。
// ClientIDが空の場合、そのプロバイダーは無効として扱う。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled はプロバイダーが利用可能かどうかを返す。
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	Yandex ProviderConfig
	Google ProviderConfig

	// Session
	SessionSecret   string // 空の場合は起動時に生成される（再起動で全セッション無効化）
	SessionMaxAge   time.Duration
	RememberMaxAge  time.Duration
	ProviderTimeout time.Duration

	// Server
	DeployMode DeployMode
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
}

// Load は環境変数からConfigを読み込む。
// DATABASE_URLのみ必須。プロバイダーの認証情報が未設定の場合、
// そのプロバイダーのルートはクラッシュせず無効化される。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}

	mode := DeployMode(getEnvString("DEPLOY_MODE", string(DeployModeLocal)))
	if mode != DeployModeLocal && mode != DeployModeRemote {
		return nil, fmt.Errorf("invalid DEPLOY_MODE: %q (must be %q or %q)", mode, DeployModeLocal, DeployModeRemote)
	}
	cfg.DeployMode = mode

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		if mode == DeployModeRemote {
			return nil, fmt.Errorf("required environment variable is not set: BASE_URL (DEPLOY_MODE=remote)")
		}
		cfg.BaseURL = "http://localhost:" + cfg.ServerPort
	}

	// リモート環境ではSecure Cookieを強制する
	cfg.CookieSecure = mode == DeployModeRemote

	cfg.Yandex = ProviderConfig{
		ClientID:     os.Getenv("YANDEX_CLIENT_ID"),
		ClientSecret: os.Getenv("YANDEX_CLIENT_SECRET"),
		RedirectURL:  getEnvString("YANDEX_REDIRECT_URL", cfg.BaseURL+"/login/yandex/authorized"),
	}
	cfg.Google = ProviderConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  getEnvString("GOOGLE_REDIRECT_URL", cfg.BaseURL+"/login/google/authorized"),
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")

	var err error
	if cfg.SessionMaxAge, err = getEnvDuration("SESSION_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RememberMaxAge, err = getEnvDuration("REMEMBER_MAX_AGE", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvDuration は環境変数から期間を読み込む。
// 秒数（"86400"）とGo表記（"24h"）の両方を受け付け、
// 解釈できない値は黙ってデフォルトに倒さずエラーにする。
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q (seconds or Go duration expected)", key, v)
	}
	return d, nil
}
