package session

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/homeboard/internal/model"
	"github.com/hitoshi/homeboard/internal/repository"
)

// --- モック定義 ---

type mockSessionRepo struct {
	sessions map[string]*model.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: map[string]*model.Session{}}
}

func (m *mockSessionRepo) Create(_ context.Context, session *model.Session) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *mockSessionRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *mockSessionRepo) DeleteByAccountID(_ context.Context, accountID string) error {
	for id, s := range m.sessions {
		if s.AccountID == accountID {
			delete(m.sessions, id)
		}
	}
	return nil
}

type mockAccountFinder struct {
	accounts map[string]*model.Account
}

func (m *mockAccountFinder) FindByID(_ context.Context, id string) (*model.Account, error) {
	if a, ok := m.accounts[id]; ok {
		return a, nil
	}
	return nil, nil
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ AccountFinder = (*mockAccountFinder)(nil)

func newTestManager(repo *mockSessionRepo) *Manager {
	accounts := &mockAccountFinder{accounts: map[string]*model.Account{
		"account-7": {ID: "account-7", Name: "Alice"},
	}}
	return NewManager(repo, accounts, Config{
		Secret:         []byte("test-secret-32bytes-long-enough!"),
		SessionMaxAge:  24 * time.Hour,
		RememberMaxAge: 30 * 24 * time.Hour,
	})
}

// --- テスト ---

func TestEstablish_RememberFalse_SessionCookie(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := newTestManager(repo)

	cred, err := mgr.Establish(context.Background(), "account-7", false)
	if err != nil {
		t.Fatalf("Establish() error = %v", err)
	}

	if cred.Token == "" {
		t.Fatal("expected non-empty token")
	}
	// remember=falseのCookieはブラウザセッション限り
	if cred.MaxAge != 0 {
		t.Errorf("MaxAge = %d, want 0 (session cookie)", cred.MaxAge)
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("store has %d sessions, want 1", len(repo.sessions))
	}
	for _, s := range repo.sessions {
		if s.Remember {
			t.Error("session row should have remember=false")
		}
		// サーバー側有効期間は24時間に制限される
		if s.ExpiresAt.After(time.Now().Add(25 * time.Hour)) {
			t.Errorf("ExpiresAt = %v, want within ~24h", s.ExpiresAt)
		}
	}
}

func TestEstablish_RememberTrue_LongLivedCredential(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := newTestManager(repo)

	cred, err := mgr.Establish(context.Background(), "account-7", true)
	if err != nil {
		t.Fatalf("Establish() error = %v", err)
	}

	want := int((30 * 24 * time.Hour).Seconds())
	if cred.MaxAge != want {
		t.Errorf("MaxAge = %d, want %d (30 days)", cred.MaxAge, want)
	}
	for _, s := range repo.sessions {
		if !s.Remember {
			t.Error("session row should have remember=true")
		}
		if s.ExpiresAt.Before(time.Now().Add(29 * 24 * time.Hour)) {
			t.Errorf("ExpiresAt = %v, want ~30 days out", s.ExpiresAt)
		}
	}
}

func TestCurrentAccount_ValidToken_ReturnsAccount(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := newTestManager(repo)

	cred, err := mgr.Establish(context.Background(), "account-7", false)
	if err != nil {
		t.Fatalf("Establish() error = %v", err)
	}

	account, err := mgr.CurrentAccount(context.Background(), cred.Token)
	if err != nil {
		t.Fatalf("CurrentAccount() error = %v", err)
	}
	if account == nil || account.ID != "account-7" {
		t.Errorf("account = %+v, want account-7", account)
	}
}

func TestCurrentAccount_EmptyOrGarbageToken_ReturnsNil(t *testing.T) {
	mgr := newTestManager(newMockSessionRepo())

	for _, token := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		account, err := mgr.CurrentAccount(context.Background(), token)
		if err != nil {
			t.Errorf("CurrentAccount(%q) error = %v", token, err)
		}
		if account != nil {
			t.Errorf("CurrentAccount(%q) = %+v, want nil", token, account)
		}
	}
}

// 署名鍵が異なるトークンは受理されないこと（偽造不能性）。
func TestCurrentAccount_TokenSignedWithOtherKey_ReturnsNil(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := newTestManager(repo)

	otherMgr := NewManager(repo, &mockAccountFinder{accounts: map[string]*model.Account{
		"account-7": {ID: "account-7"},
	}}, Config{Secret: []byte("a-completely-different-secret-key")})

	cred, err := otherMgr.Establish(context.Background(), "account-7", false)
	if err != nil {
		t.Fatalf("Establish() error = %v", err)
	}

	account, err := mgr.CurrentAccount(context.Background(), cred.Token)
	if err != nil {
		t.Fatalf("CurrentAccount() error = %v", err)
	}
	if account != nil {
		t.Error("token signed with another key must not be accepted")
	}
}

func TestTerminate_InvalidatesSession(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := newTestManager(repo)

	cred, err := mgr.Establish(context.Background(), "account-7", true)
	if err != nil {
		t.Fatalf("Establish() error = %v", err)
	}

	if err := mgr.Terminate(context.Background(), cred.Token); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}

	account, err := mgr.CurrentAccount(context.Background(), cred.Token)
	if err != nil {
		t.Fatalf("CurrentAccount() error = %v", err)
	}
	if account != nil {
		t.Error("terminated session must not resolve to an account")
	}
	if len(repo.sessions) != 0 {
		t.Errorf("store has %d sessions, want 0", len(repo.sessions))
	}
}

func TestTerminate_GarbageToken_NoOp(t *testing.T) {
	mgr := newTestManager(newMockSessionRepo())

	if err := mgr.Terminate(context.Background(), "garbage"); err != nil {
		t.Errorf("Terminate() error = %v, want nil", err)
	}
}

func TestLoadOrGenerateSecret(t *testing.T) {
	secret, err := LoadOrGenerateSecret("configured-secret")
	if err != nil {
		t.Fatalf("LoadOrGenerateSecret() error = %v", err)
	}
	if string(secret) != "configured-secret" {
		t.Errorf("secret = %q, want configured value", secret)
	}

	generated, err := LoadOrGenerateSecret("")
	if err != nil {
		t.Fatalf("LoadOrGenerateSecret() error = %v", err)
	}
	if len(generated) == 0 {
		t.Error("expected generated secret to be non-empty")
	}
}
