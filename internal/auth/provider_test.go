package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/homeboard/internal/config"
	"github.com/hitoshi/homeboard/internal/model"
)

func enabledConfig() config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/login/yandex/authorized",
	}
}

func TestNewClient_UnsupportedProvider_ReturnsError(t *testing.T) {
	_, err := NewClient(model.Provider("github"), enabledConfig(), time.Second, nil)
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestLoginURL_ContainsRequiredParams(t *testing.T) {
	client, err := NewClient(model.ProviderGoogle, enabledConfig(), time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	url, err := client.LoginURL("test-state-value")
	if err != nil {
		t.Fatalf("LoginURL() error = %v", err)
	}

	tests := []struct {
		name     string
		contains string
	}{
		{"client_id", "client_id=test-client-id"},
		{"redirect_uri", "redirect_uri="},
		{"state", "state=test-state-value"},
		{"response_type", "response_type=code"},
		{"scope email", "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(url, tt.contains) {
				t.Errorf("URL should contain %q, got %q", tt.contains, url)
			}
		})
	}
}

// Yandexのuserinfo URLはクエリ（?format=json）を含むため、
// 認可URLの構築が壊れないことを個別に確認する。
func TestLoginURL_YandexScopes(t *testing.T) {
	client, err := NewClient(model.ProviderYandex, enabledConfig(), time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	url, err := client.LoginURL("s")
	if err != nil {
		t.Fatalf("LoginURL() error = %v", err)
	}
	if !strings.HasPrefix(url, "https://oauth.yandex.ru/authorize?") {
		t.Errorf("unexpected auth URL: %q", url)
	}
	if !strings.Contains(url, "login%3Ainfo") {
		t.Errorf("URL should contain yandex scopes, got %q", url)
	}
}

func TestLoginURL_DisabledProvider_ReturnsError(t *testing.T) {
	client, err := NewClient(model.ProviderYandex, config.ProviderConfig{}, time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.LoginURL("state")
	if !errors.Is(err, ErrProviderDisabled) {
		t.Errorf("expected ErrProviderDisabled, got %v", err)
	}
}

func TestExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		if got := r.PostForm.Get("code"); got != "test-auth-code" {
			t.Errorf("code = %q, want %q", got, "test-auth-code")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	client, err := NewClient(model.ProviderGoogle, enabledConfig(), time.Second, &ClientOverrides{
		TokenURL: tokenServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	token, err := client.ExchangeCode(context.Background(), "test-auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if token != "test-access-token" {
		t.Errorf("token = %q, want %q", token, "test-access-token")
	}
}

func TestExchangeCode_Non2xx_ReturnsTokenRejected(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenServer.Close()

	client, err := NewClient(model.ProviderYandex, enabledConfig(), time.Second, &ClientOverrides{
		TokenURL: tokenServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.ExchangeCode(context.Background(), "expired-code")
	if !errors.Is(err, ErrTokenRejected) {
		t.Errorf("expected ErrTokenRejected, got %v", err)
	}
}

func TestExchangeCode_NetworkError_ReturnsUnreachable(t *testing.T) {
	// サーバーを即座に閉じて接続エラーを発生させる
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokenServer.Close()

	client, err := NewClient(model.ProviderYandex, enabledConfig(), time.Second, &ClientOverrides{
		TokenURL: tokenServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.ExchangeCode(context.Background(), "code")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestExchangeCode_EmptyAccessToken_ReturnsTokenRejected(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"token_type": "Bearer"})
	}))
	defer tokenServer.Close()

	client, err := NewClient(model.ProviderGoogle, enabledConfig(), time.Second, &ClientOverrides{
		TokenURL: tokenServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.ExchangeCode(context.Background(), "code")
	if !errors.Is(err, ErrTokenRejected) {
		t.Errorf("expected ErrTokenRejected, got %v", err)
	}
}

func TestFetchIdentity_Yandex_MapsProviderFields(t *testing.T) {
	userinfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "yandex-12345",
			"default_email": "alice@example.com",
			"real_name":     "Alice Ivanova",
			"display_name":  "alice",
		})
	}))
	defer userinfoServer.Close()

	client, err := NewClient(model.ProviderYandex, enabledConfig(), time.Second, &ClientOverrides{
		UserinfoURL: userinfoServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ident, err := client.FetchIdentity(context.Background(), "test-access-token")
	if err != nil {
		t.Fatalf("FetchIdentity() error = %v", err)
	}

	if ident.Provider != model.ProviderYandex {
		t.Errorf("provider = %q, want %q", ident.Provider, model.ProviderYandex)
	}
	if ident.ExternalID != "yandex-12345" {
		t.Errorf("externalID = %q, want %q", ident.ExternalID, "yandex-12345")
	}
	if ident.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", ident.Email, "alice@example.com")
	}
	// real_nameが存在する場合はdisplay_nameより優先される
	if ident.Name != "Alice Ivanova" {
		t.Errorf("name = %q, want %q", ident.Name, "Alice Ivanova")
	}
}

func TestFetchIdentity_Yandex_NameFallsBackToDisplayName(t *testing.T) {
	userinfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":           "yandex-12345",
			"display_name": "alice",
		})
	}))
	defer userinfoServer.Close()

	client, err := NewClient(model.ProviderYandex, enabledConfig(), time.Second, &ClientOverrides{
		UserinfoURL: userinfoServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ident, err := client.FetchIdentity(context.Background(), "token")
	if err != nil {
		t.Fatalf("FetchIdentity() error = %v", err)
	}
	if ident.Name != "alice" {
		t.Errorf("name = %q, want %q", ident.Name, "alice")
	}
	if ident.Email != "" {
		t.Errorf("email = %q, want empty", ident.Email)
	}
}

func TestFetchIdentity_Google_MapsSubAndEmail(t *testing.T) {
	userinfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":   "google-sub-67890",
			"email": "alice@example.com",
			"name":  "Alice",
		})
	}))
	defer userinfoServer.Close()

	client, err := NewClient(model.ProviderGoogle, enabledConfig(), time.Second, &ClientOverrides{
		UserinfoURL: userinfoServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ident, err := client.FetchIdentity(context.Background(), "token")
	if err != nil {
		t.Fatalf("FetchIdentity() error = %v", err)
	}
	if ident.ExternalID != "google-sub-67890" {
		t.Errorf("externalID = %q, want %q", ident.ExternalID, "google-sub-67890")
	}
	if ident.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", ident.Email, "alice@example.com")
	}
}

func TestFetchIdentity_MissingExternalID_ReturnsMalformedUserinfo(t *testing.T) {
	userinfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"email": "alice@example.com",
		})
	}))
	defer userinfoServer.Close()

	client, err := NewClient(model.ProviderGoogle, enabledConfig(), time.Second, &ClientOverrides{
		UserinfoURL: userinfoServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.FetchIdentity(context.Background(), "token")
	if !errors.Is(err, ErrMalformedUserinfo) {
		t.Errorf("expected ErrMalformedUserinfo, got %v", err)
	}
}

func TestFetchIdentity_Timeout_ReturnsUnreachable(t *testing.T) {
	userinfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer userinfoServer.Close()

	client, err := NewClient(model.ProviderGoogle, enabledConfig(), 20*time.Millisecond, &ClientOverrides{
		UserinfoURL: userinfoServer.URL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.FetchIdentity(context.Background(), "token")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}
