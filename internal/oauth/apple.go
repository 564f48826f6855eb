package oauth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"be-auth/internal/domain"
	"be-auth/pkg/errors"
	"be-auth/pkg/logger"
)

const (
	appleAuthURL   = "https://appleid.apple.com/auth/authorize"
	appleTokenURL  = "https://appleid.apple.com/auth/token"
	appleTokenAud  = "https://appleid.apple.com"
	appleSecretTTL = time.Hour
)

// AppleConfig holds the Sign in with Apple client settings
type AppleConfig struct {
	TeamID      string
	ClientID    string
	KeyID       string
	PrivateKey  string // PEM-encoded P-256 key
	RedirectURL string
}

// AppleProvider implements the Provider contract for Sign in with Apple.
// Apple diverges from the standard flow in two ways: the client secret is a
// short-lived signed assertion generated per request, and there is no
// user-info endpoint. Identity claims arrive exactly once in the
// authorization callback payload and must be parsed with ParseCallbackUser.
type AppleProvider struct {
	teamID      string
	clientID    string
	keyID       string
	privateKey  *ecdsa.PrivateKey
	redirectURL string

	authURL    string
	tokenURL   string
	httpClient *http.Client
	logger     *logger.Logger
	now        func() time.Time
}

// AppleOption configures an AppleProvider
type AppleOption func(*AppleProvider)

// WithAppleTokenURL overrides the token endpoint (tests)
func WithAppleTokenURL(url string) AppleOption {
	return func(p *AppleProvider) {
		p.tokenURL = url
	}
}

// NewAppleProvider creates an Apple adapter. The private key must be the
// PEM-encoded P-256 key downloaded from the Apple developer portal.
func NewAppleProvider(cfg AppleConfig, log *logger.Logger, opts ...AppleOption) (*AppleProvider, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Apple private key: %w", err)
	}

	p := &AppleProvider{
		teamID:      cfg.TeamID,
		clientID:    cfg.ClientID,
		keyID:       cfg.KeyID,
		privateKey:  key,
		redirectURL: cfg.RedirectURL,
		authURL:     appleAuthURL,
		tokenURL:    appleTokenURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      log,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Name returns the provider tag
func (p *AppleProvider) Name() domain.Provider {
	return domain.ProviderApple
}

// AuthorizationURL builds the Apple redirect URL. Apple requires
// response_mode=form_post whenever the name or email scope is requested.
func (p *AppleProvider) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", p.clientID)
	params.Set("redirect_uri", p.redirectURL)
	params.Set("response_type", "code")
	params.Set("response_mode", "form_post")
	params.Set("scope", "name email")
	params.Set("state", state)

	return p.authURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for provider tokens
func (p *AppleProvider) ExchangeCode(ctx context.Context, code string) (*domain.OAuthTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.redirectURL)

	return p.tokenRequest(ctx, "exchange_code", form)
}

// UserInfo is unsupported for Apple: identity claims arrive only once in the
// authorization callback and cannot be re-fetched. Callers must branch on
// provider and use ParseCallbackUser instead.
func (p *AppleProvider) UserInfo(ctx context.Context, accessToken string) (*domain.OAuthUserInfo, error) {
	return nil, errors.NewConfigurationError("Apple does not expose a user-info endpoint; user info must be parsed from the authorization callback")
}

// Refresh exchanges an Apple refresh token for fresh provider tokens
func (p *AppleProvider) Refresh(ctx context.Context, refreshToken string) (*domain.OAuthTokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	resp, err := p.tokenRequest(ctx, "refresh", form)
	if err != nil {
		return nil, err
	}
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	return resp, nil
}

// appleCallbackUser mirrors the one-time user payload Apple posts to the
// authorization callback.
type appleCallbackUser struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  *struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
}

// ParseCallbackUser decodes the one-time authorization callback payload into
// the normalized identity shape. This payload is never re-fetchable.
func (p *AppleProvider) ParseCallbackUser(payload []byte) (*domain.OAuthUserInfo, error) {
	var cb appleCallbackUser
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: "parse_callback_user", Err: err}
	}
	if cb.Sub == "" {
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: "parse_callback_user", Err: fmt.Errorf("missing sub claim")}
	}

	info := &domain.OAuthUserInfo{
		ID:       cb.Sub,
		Email:    cb.Email,
		Provider: domain.ProviderApple,
	}
	if cb.Name != nil {
		info.Name = strings.TrimSpace(cb.Name.FirstName + " " + cb.Name.LastName)
	}

	return info, nil
}

// clientSecret builds the short-lived signed assertion Apple requires as the
// OAuth client_secret on every token request.
func (p *AppleProvider) clientSecret() (string, error) {
	now := p.now()

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": p.teamID,
		"iat": now.Unix(),
		"exp": now.Add(appleSecretTTL).Unix(),
		"aud": appleTokenAud,
		"sub": p.clientID,
	})
	token.Header["kid"] = p.keyID

	secret, err := token.SignedString(p.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign Apple client secret: %w", err)
	}

	return secret, nil
}

func (p *AppleProvider) tokenRequest(ctx context.Context, op string, form url.Values) (*domain.OAuthTokenResponse, error) {
	secret, err := p.clientSecret()
	if err != nil {
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: op, Err: err}
	}

	form.Set("client_id", p.clientID)
	form.Set("client_secret", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp domain.OAuthTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, &ProviderError{Provider: domain.ProviderApple, Op: op, Err: err}
	}

	return &tokenResp, nil
}
