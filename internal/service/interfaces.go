package service

import (
	"context"

	"be-auth/internal/domain"
)

// OAuthLoginInput carries one federated login attempt. Exactly one of Code or
// IDToken must be set; User is the raw one-time authorization callback payload
// Apple posts on first login, unused by other providers.
type OAuthLoginInput struct {
	Provider domain.Provider
	Code     string
	IDToken  string
	User     []byte
}

// AuthService defines the interface for login, refresh and token resolution
type AuthService interface {
	// AuthorizationURL builds the provider redirect URL for a login attempt
	AuthorizationURL(provider domain.Provider, state string) (string, error)

	// LoginWithOAuth runs a federated login through the matching provider adapter
	LoginWithOAuth(ctx context.Context, input OAuthLoginInput) (*domain.AuthResult, error)

	// LoginWithEmail completes an email login after OTP verification succeeded
	LoginWithEmail(ctx context.Context, email string) (*domain.AuthResult, error)

	// LoginAsGuest creates a fresh guest identity; the result carries no refresh token
	LoginAsGuest(ctx context.Context, deviceID string) (*domain.AuthResult, error)

	// Refresh issues a new access token for a stored refresh token
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error)

	// VerifyToken validates an issued access token and returns its claims
	VerifyToken(token string) (*domain.AuthClaims, bool)

	// UserFromToken resolves an issued access token to its current user record
	UserFromToken(ctx context.Context, token string) (*domain.User, error)
}

// Services aggregates all service interfaces
type Services struct {
	Auth AuthService
}
