package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/homeboard/internal/model"
	"github.com/hitoshi/homeboard/internal/repository"
)

// AccountFinder はセッション解決に必要なアカウント検索インターフェース。
// repository.AccountRepositoryの部分集合として定義する。
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

// Credential はブラウザへ渡すセッション資格情報。
// Cookieの値（署名済みトークン）とCookie属性の材料を持つ。
type Credential struct {
	Token    string
	Remember bool
	// MaxAge はCookieの有効秒数。0はブラウザセッション限り（remember=false）。
	MaxAge int
}

// Config はセッションマネージャーの設定。
type Config struct {
	Secret []byte
	// SessionMaxAge はremember=falseセッションのサーバー側有効期間。
	// Cookie自体はブラウザ終了で消えるが、放置されたセッション行も失効させる。
	SessionMaxAge time.Duration
	// RememberMaxAge はremember=trueセッションの有効期間（30日程度）。
	RememberMaxAge time.Duration
}

// Manager は解決済みアカウントとブラウザセッションを紐付ける。
// セッション本体はストアの行が真実であり（ログアウトで即時失効）、
// Cookieの署名済みトークンは行への偽造不能な参照にすぎない。
type Manager struct {
	sessions repository.SessionRepository
	accounts AccountFinder
	config   Config
}

// NewManager はManagerを生成する。
func NewManager(sessions repository.SessionRepository, accounts AccountFinder, config Config) *Manager {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = 24 * time.Hour
	}
	if config.RememberMaxAge <= 0 {
		config.RememberMaxAge = 30 * 24 * time.Hour
	}
	return &Manager{
		sessions: sessions,
		accounts: accounts,
		config:   config,
	}
}

// Establish は指定アカウントのセッションを発行する。
// remember=trueの場合は長期（30日）、falseの場合はブラウザ終了までの
// Cookieと24時間のサーバー側有効期間になる。
func (m *Manager) Establish(ctx context.Context, accountID string, remember bool) (*Credential, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	validity := m.config.SessionMaxAge
	if remember {
		validity = m.config.RememberMaxAge
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		AccountID: accountID,
		Remember:  remember,
		ExpiresAt: now.Add(validity),
		CreatedAt: now,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	token, err := signToken(sessionID, m.config.Secret, validity)
	if err != nil {
		return nil, err
	}

	cred := &Credential{
		Token:    token,
		Remember: remember,
	}
	if remember {
		cred.MaxAge = int(m.config.RememberMaxAge.Seconds())
	}
	return cred, nil
}

// CurrentAccount はセッショントークンからアカウントを解決する。
// トークンが不正・期限切れ・失効済みの場合はエラーではなくnilを返す。
func (m *Manager) CurrentAccount(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, nil
	}

	sessionID, err := sessionIDFromToken(token, m.config.Secret)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, nil
		}
		return nil, err
	}

	session, err := m.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	account, err := m.accounts.FindByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// Terminate はセッションを即時失効させる。
// トークンが不正な場合は何もしない。
func (m *Manager) Terminate(ctx context.Context, token string) error {
	sessionID, err := sessionIDFromToken(token, m.config.Secret)
	if err != nil {
		return nil
	}

	if err := m.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("session terminated", slog.String("session_id", sessionID))
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
