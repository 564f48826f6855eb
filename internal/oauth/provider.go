// Package oauth contains the federated identity provider adapters. Each
// adapter translates one provider's protocol quirks into the normalized
// domain.OAuthUserInfo shape the auth service consumes.
package oauth

import (
	"context"
	"fmt"

	"be-auth/internal/domain"
	"be-auth/pkg/errors"
)

// Provider is the common contract every federated identity provider implements
type Provider interface {
	// Name returns the provider tag
	Name() domain.Provider

	// AuthorizationURL builds the redirect URL that starts the login flow
	AuthorizationURL(state string) string

	// ExchangeCode exchanges an authorization code for provider tokens
	ExchangeCode(ctx context.Context, code string) (*domain.OAuthTokenResponse, error)

	// UserInfo retrieves the normalized identity for an access token.
	// Not every provider supports this; Apple fails loudly here.
	UserInfo(ctx context.Context, accessToken string) (*domain.OAuthUserInfo, error)

	// Refresh exchanges a provider refresh token for fresh provider tokens
	Refresh(ctx context.Context, refreshToken string) (*domain.OAuthTokenResponse, error)
}

// ProviderError is returned for any transport or protocol failure talking to
// a provider. The auth service translates it into a result failure at its boundary.
type ProviderError struct {
	Provider   domain.Provider
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Registry selects a configured provider adapter by provider tag
type Registry struct {
	providers map[domain.Provider]Provider
}

// NewRegistry creates a registry over the given adapters
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[domain.Provider]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the adapter for a provider tag. Requesting a provider with no
// configured adapter is a deployment bug and yields a configuration error.
func (r *Registry) Get(provider domain.Provider) (Provider, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, errors.NewConfigurationError(fmt.Sprintf("OAuth provider %s is not configured", provider))
	}
	return p, nil
}

// Has reports whether an adapter is configured for the provider tag
func (r *Registry) Has(provider domain.Provider) bool {
	_, ok := r.providers[provider]
	return ok
}
