package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"

	"be-auth/internal/domain"
	"be-auth/pkg/logger"
)

func testOAuthLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "development")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestGoogleProvider_AuthorizationURL(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{
		ClientID:    "client-id",
		RedirectURL: "https://app.example.com/callback",
	}, testOAuthLogger(t))

	raw := p.AuthorizationURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthorizationURL() produced an unparsable URL: %v", err)
	}

	q := u.Query()
	checks := map[string]string{
		"client_id":    "client-id",
		"redirect_uri": "https://app.example.com/callback",
		"state":        "state-123",
		"access_type":  "offline",
		"prompt":       "consent",
	}
	for param, want := range checks {
		if got := q.Get(param); got != want {
			t.Errorf("AuthorizationURL() %s = %q, want %q", param, got, want)
		}
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "openid") || !strings.Contains(scope, "email") {
		t.Errorf("AuthorizationURL() scope = %q, want openid and email", scope)
	}
}

func TestGoogleProvider_ExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse token request form: %v", err)
		}
		if got := r.FormValue("code"); got != "auth-code" {
			t.Errorf("token request code = %q, want %q", got, "auth-code")
		}
		if got := r.FormValue("grant_type"); got != "authorization_code" {
			t.Errorf("token request grant_type = %q, want authorization_code", got)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"access_token": "access-123",
			"token_type": "Bearer",
			"refresh_token": "refresh-456",
			"expires_in": 3600,
			"id_token": "id-789",
			"scope": "openid email"
		}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id", ClientSecret: "secret"},
		testOAuthLogger(t),
		WithGoogleEndpoint(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}))

	resp, err := p.ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if resp.AccessToken != "access-123" {
		t.Errorf("AccessToken = %q, want access-123", resp.AccessToken)
	}
	if resp.RefreshToken != "refresh-456" {
		t.Errorf("RefreshToken = %q, want refresh-456", resp.RefreshToken)
	}
	if resp.IDToken != "id-789" {
		t.Errorf("IDToken = %q, want id-789", resp.IDToken)
	}
	if resp.ExpiresIn <= 0 || resp.ExpiresIn > 3600 {
		t.Errorf("ExpiresIn = %d, want within (0, 3600]", resp.ExpiresIn)
	}
}

func TestGoogleProvider_ExchangeCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "invalid_grant"}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id"},
		testOAuthLogger(t),
		WithGoogleEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token"}))

	_, err := p.ExchangeCode(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("ExchangeCode() error = nil, want ProviderError")
	}

	pErr, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("ExchangeCode() error type = %T, want *ProviderError", err)
	}
	if pErr.StatusCode != http.StatusBadRequest {
		t.Errorf("ProviderError.StatusCode = %d, want %d", pErr.StatusCode, http.StatusBadRequest)
	}
	if pErr.Provider != domain.ProviderGoogle {
		t.Errorf("ProviderError.Provider = %q, want %q", pErr.Provider, domain.ProviderGoogle)
	}
}

func TestGoogleProvider_UserInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-123" {
			t.Errorf("user-info Authorization = %q, want Bearer access-123", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "google-uid-1",
			"email": "user@example.com",
			"name": "Test User",
			"picture": "https://img.example.com/p.png"
		}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id"},
		testOAuthLogger(t),
		WithGoogleUserInfoURL(srv.URL))

	info, err := p.UserInfo(context.Background(), "access-123")
	if err != nil {
		t.Fatalf("UserInfo() error = %v", err)
	}

	if info.ID != "google-uid-1" {
		t.Errorf("ID = %q, want google-uid-1", info.ID)
	}
	if info.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", info.Email)
	}
	if info.Name != "Test User" {
		t.Errorf("Name = %q, want Test User", info.Name)
	}
	if info.AvatarURL != "https://img.example.com/p.png" {
		t.Errorf("AvatarURL = %q, want the picture URL", info.AvatarURL)
	}
	if info.Provider != domain.ProviderGoogle {
		t.Errorf("Provider = %q, want %q", info.Provider, domain.ProviderGoogle)
	}
}

func TestGoogleProvider_UserInfoUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id"},
		testOAuthLogger(t),
		WithGoogleUserInfoURL(srv.URL))

	_, err := p.UserInfo(context.Background(), "stale-token")
	if err == nil {
		t.Fatal("UserInfo() error = nil, want ProviderError")
	}
	pErr, ok := err.(*ProviderError)
	if !ok {
		t.Fatalf("UserInfo() error type = %T, want *ProviderError", err)
	}
	if pErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("ProviderError.StatusCode = %d, want %d", pErr.StatusCode, http.StatusUnauthorized)
	}
}

func TestGoogleProvider_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse token request form: %v", err)
		}
		if got := r.FormValue("grant_type"); got != "refresh_token" {
			t.Errorf("token request grant_type = %q, want refresh_token", got)
		}
		if got := r.FormValue("refresh_token"); got != "refresh-456" {
			t.Errorf("token request refresh_token = %q, want refresh-456", got)
		}

		// Google omits refresh_token when it has not rotated
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "access-new", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id"},
		testOAuthLogger(t),
		WithGoogleEndpoint(oauth2.Endpoint{TokenURL: srv.URL + "/token"}))

	resp, err := p.Refresh(context.Background(), "refresh-456")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if resp.AccessToken != "access-new" {
		t.Errorf("AccessToken = %q, want access-new", resp.AccessToken)
	}
	if resp.RefreshToken != "refresh-456" {
		t.Errorf("RefreshToken = %q, want the original token carried forward", resp.RefreshToken)
	}
}

func TestGoogleProvider_VerifyIDToken(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id"}, testOAuthLogger(t))
	p.validateIDToken = func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != "raw-id-token" {
			t.Errorf("validate token = %q, want raw-id-token", token)
		}
		if audience != "client-id" {
			t.Errorf("validate audience = %q, want client-id", audience)
		}
		return &idtoken.Payload{
			Subject: "google-uid-1",
			Claims: map[string]interface{}{
				"email":   "user@example.com",
				"name":    "Test User",
				"picture": "https://img.example.com/p.png",
			},
		}, nil
	}

	info, err := p.VerifyIDToken(context.Background(), "raw-id-token")
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}
	if info.ID != "google-uid-1" || info.Email != "user@example.com" {
		t.Errorf("VerifyIDToken() = %+v, want subject and email claims mapped", info)
	}
	if info.Provider != domain.ProviderGoogle {
		t.Errorf("Provider = %q, want %q", info.Provider, domain.ProviderGoogle)
	}
}

func TestGoogleProvider_VerifyIDTokenRejected(t *testing.T) {
	p := NewGoogleProvider(GoogleConfig{ClientID: "client-id"}, testOAuthLogger(t))
	p.validateIDToken = func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		return nil, fmt.Errorf("idtoken: token expired")
	}

	if _, err := p.VerifyIDToken(context.Background(), "stale"); err == nil {
		t.Fatal("VerifyIDToken() error = nil, want rejection")
	}
}
