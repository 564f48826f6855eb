package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"be-auth/internal/domain"
	"be-auth/pkg/logger"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds the Google OAuth client settings
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleProvider implements the Provider contract for Google's standard
// authorization-code flow.
type GoogleProvider struct {
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	logger      *logger.Logger

	// validateIDToken is swappable for tests; defaults to idtoken.Validate
	validateIDToken func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// GoogleOption configures a GoogleProvider
type GoogleOption func(*GoogleProvider)

// WithGoogleEndpoint overrides the token endpoint (tests)
func WithGoogleEndpoint(endpoint oauth2.Endpoint) GoogleOption {
	return func(p *GoogleProvider) {
		p.conf.Endpoint = endpoint
	}
}

// WithGoogleUserInfoURL overrides the user-info endpoint (tests)
func WithGoogleUserInfoURL(url string) GoogleOption {
	return func(p *GoogleProvider) {
		p.userInfoURL = url
	}
}

// WithGoogleIDTokenValidator overrides ID-token validation (tests)
func WithGoogleIDTokenValidator(validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)) GoogleOption {
	return func(p *GoogleProvider) {
		p.validateIDToken = validate
	}
}

// NewGoogleProvider creates a Google adapter
func NewGoogleProvider(cfg GoogleConfig, log *logger.Logger, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL:     googleUserInfoURL,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		logger:          log,
		validateIDToken: idtoken.Validate,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Name returns the provider tag
func (p *GoogleProvider) Name() domain.Provider {
	return domain.ProviderGoogle
}

// AuthorizationURL builds the Google redirect URL. Offline access and forced
// consent guarantee a refresh token on every grant.
func (p *GoogleProvider) AuthorizationURL(state string) string {
	return p.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// ExchangeCode exchanges an authorization code for provider tokens
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*domain.OAuthTokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, p.wrapOAuth2Error("exchange_code", err)
	}

	return p.tokenResponse(tok), nil
}

// UserInfo retrieves the normalized Google identity for an access token
func (p *GoogleProvider) UserInfo(ctx context.Context, accessToken string) (*domain.OAuthUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, &ProviderError{Provider: domain.ProviderGoogle, Op: "user_info", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: domain.ProviderGoogle, Op: "user_info", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ProviderError{Provider: domain.ProviderGoogle, Op: "user_info", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, &ProviderError{Provider: domain.ProviderGoogle, Op: "user_info", Err: err}
	}

	return &domain.OAuthUserInfo{
		ID:        info.ID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
		Provider:  domain.ProviderGoogle,
	}, nil
}

// Refresh exchanges a provider refresh token for fresh provider tokens
func (p *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*domain.OAuthTokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	src := p.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, p.wrapOAuth2Error("refresh", err)
	}

	resp := p.tokenResponse(tok)
	if resp.RefreshToken == "" {
		// Google omits the refresh token when it has not rotated
		resp.RefreshToken = refreshToken
	}
	return resp, nil
}

// VerifyIDToken validates a Google ID token against our client id and
// normalizes its claims. Used by the id-token login path where no
// authorization code is involved.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*domain.OAuthUserInfo, error) {
	payload, err := p.validateIDToken(ctx, rawIDToken, p.conf.ClientID)
	if err != nil {
		return nil, &ProviderError{Provider: domain.ProviderGoogle, Op: "verify_id_token", Err: err}
	}

	info := &domain.OAuthUserInfo{
		ID:       payload.Subject,
		Provider: domain.ProviderGoogle,
	}
	if email, ok := payload.Claims["email"].(string); ok {
		info.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		info.Name = name
	}
	if picture, ok := payload.Claims["picture"].(string); ok {
		info.AvatarURL = picture
	}

	return info, nil
}

func (p *GoogleProvider) tokenResponse(tok *oauth2.Token) *domain.OAuthTokenResponse {
	resp := &domain.OAuthTokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	return resp
}

func (p *GoogleProvider) wrapOAuth2Error(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		return &ProviderError{
			Provider:   domain.ProviderGoogle,
			Op:         op,
			StatusCode: rErr.Response.StatusCode,
			Body:       string(rErr.Body),
		}
	}
	return &ProviderError{Provider: domain.ProviderGoogle, Op: op, Err: err}
}
