// Package auth implements the authentication orchestrator: it composes the
// provider adapters, the token codec and the user/token repositories into the
// three login flows, refresh, and token-to-user resolution.
package auth

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"be-auth/internal/domain"
	"be-auth/internal/oauth"
	"be-auth/internal/repository"
	"be-auth/internal/service"
	"be-auth/internal/service/token"
	"be-auth/pkg/errors"
	"be-auth/pkg/logger"
)

// Refresh tokens issued by this service (email login) live this long; the
// expiry is extended by the same amount on every successful refresh.
const refreshTokenTTL = time.Hour

// Expected refresh failures, surfaced as sentinel results so handlers can
// give precise feedback without unwinding control flow.
var (
	ErrInvalidRefreshToken = stderrors.New("invalid refresh token")
	ErrExpiredRefreshToken = stderrors.New("expired refresh token")
)

// Service implements the AuthService interface
type Service struct {
	repos     *repository.Repositories
	providers *oauth.Registry
	codec     *token.Codec
	logger    *logger.Logger
	now       func() time.Time
}

// NewService creates the authentication orchestrator
func NewService(repos *repository.Repositories, providers *oauth.Registry, codec *token.Codec, log *logger.Logger) *Service {
	return &Service{
		repos:     repos,
		providers: providers,
		codec:     codec,
		logger:    log,
		now:       time.Now,
	}
}

var _ service.AuthService = (*Service)(nil)

// AuthorizationURL builds the provider redirect URL for a login attempt.
// Requesting an unconfigured provider is a configuration error.
func (s *Service) AuthorizationURL(provider domain.Provider, state string) (string, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return "", err
	}
	return p.AuthorizationURL(state), nil
}

// LoginWithOAuth runs a federated login. The identity arrives either through
// an authorization code (exchanged and resolved per provider) or, for Google,
// a pre-obtained ID token. Apple identities on the code path must carry the
// one-time callback payload since Apple exposes no user-info endpoint.
func (s *Service) LoginWithOAuth(ctx context.Context, input service.OAuthLoginInput) (*domain.AuthResult, error) {
	p, err := s.providers.Get(input.Provider)
	if err != nil {
		return nil, err
	}

	var (
		info   *domain.OAuthUserInfo
		tokens *domain.OAuthTokenResponse
	)

	switch {
	case input.IDToken != "":
		info, err = s.verifyProviderIDToken(ctx, p, input.IDToken)
		if err != nil {
			return nil, err
		}

	case input.Code != "":
		tokens, err = p.ExchangeCode(ctx, input.Code)
		if err != nil {
			return nil, err
		}

		if apple, ok := p.(*oauth.AppleProvider); ok {
			if len(input.User) == 0 {
				return nil, errors.NewConfigurationError("Apple login requires the one-time authorization callback payload; it cannot be re-fetched")
			}
			info, err = apple.ParseCallbackUser(input.User)
		} else {
			info, err = p.UserInfo(ctx, tokens.AccessToken)
		}
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.NewValidationError("either code or idToken is required", nil)
	}

	user, err := s.findOrCreateUser(ctx, info)
	if err != nil {
		return nil, err
	}

	// Every OAuth login carries a refresh token; only guests go without one.
	// The provider's own token is preferred, with a minted one standing in
	// when the flow yields none (id-token logins, providers that withhold it).
	refreshToken := uuid.NewString()
	accessSnapshot := ""
	scope := ""
	expiresAt := s.now().Add(refreshTokenTTL)
	if tokens != nil {
		accessSnapshot = tokens.AccessToken
		scope = tokens.Scope
		if tokens.RefreshToken != "" {
			refreshToken = tokens.RefreshToken
			expiresAt = s.tokenExpiry(tokens)
		}
	}
	if err := s.persistToken(ctx, user.ID, accessSnapshot, refreshToken, scope, expiresAt); err != nil {
		return nil, err
	}

	result, err := s.issueResult(user, refreshToken)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"provider": string(user.Provider),
	}).Info("OAuth login succeeded")
	return result, nil
}

// LoginWithEmail completes an email login. It runs after OTP verification
// succeeded; the email is trusted at this point. First-time logins get a
// synthetic provider id; every login gets a fresh refresh token.
func (s *Service) LoginWithEmail(ctx context.Context, email string) (*domain.AuthResult, error) {
	user, err := s.repos.User.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &domain.User{
			ID:         uuid.NewString(),
			Email:      email,
			Provider:   domain.ProviderEmail,
			ProviderID: "email:" + uuid.NewString(),
			Role:       domain.RoleUser,
		}
		if err := s.repos.User.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	result, err := s.issueResult(user, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := s.persistToken(ctx, user.ID, result.AccessToken, result.RefreshToken, "", s.now().Add(refreshTokenTTL)); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("Email login succeeded")
	return result, nil
}

// LoginAsGuest creates a brand-new guest identity on every call; guest
// identity is deliberately not deduplicated by device. The result carries an
// access token only, never a refresh token.
func (s *Service) LoginAsGuest(ctx context.Context, deviceID string) (*domain.AuthResult, error) {
	user := &domain.User{
		ID:         uuid.NewString(),
		Name:       "Guest",
		Provider:   domain.ProviderGuest,
		ProviderID: "guest:" + uuid.NewString(),
		Role:       domain.RoleGuest,
	}
	if err := s.repos.User.Create(ctx, user); err != nil {
		return nil, err
	}

	result, err := s.issueResult(user, "")
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":   user.ID,
		"device_id": deviceID,
	}).Info("Guest login succeeded")
	return result, nil
}

// Refresh issues a new access token against a stored refresh token. The
// refresh-token value itself is retained; only its stored expiry moves
// forward. Unknown and expired tokens surface as sentinel errors.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error) {
	record, err := s.repos.Token.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrInvalidRefreshToken
	}
	if record.Expired(s.now()) {
		return nil, ErrExpiredRefreshToken
	}

	user, err := s.repos.User.GetByID(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.repos.Token.UpdateExpiry(ctx, record.ID, s.now().Add(refreshTokenTTL)); err != nil {
		return nil, err
	}

	result, err := s.issueResult(user, refreshToken)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Debug("Access token refreshed")
	return result, nil
}

// GenerateToken issues a signed access token for a user
func (s *Service) GenerateToken(user *domain.User) (string, time.Time, error) {
	return s.codec.Generate(user)
}

// VerifyToken validates an issued access token and returns its claims.
// All failure modes collapse to ok=false.
func (s *Service) VerifyToken(tokenString string) (*domain.AuthClaims, bool) {
	return s.codec.Verify(tokenString)
}

// UserFromToken resolves an issued access token to its current user record
func (s *Service) UserFromToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, ok := s.codec.Verify(tokenString)
	if !ok {
		return nil, errors.NewAuthenticationError("invalid token")
	}

	user, err := s.repos.User.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewAuthenticationError("invalid token")
	}
	return user, nil
}

// findOrCreateUser maps a normalized provider identity onto our user model:
// lookup by (provider, provider-native id), fall back to email, update
// drifted profile fields, create when absent.
func (s *Service) findOrCreateUser(ctx context.Context, info *domain.OAuthUserInfo) (*domain.User, error) {
	user, err := s.repos.User.GetByProviderID(ctx, info.ID, info.Provider)
	if err != nil {
		return nil, err
	}
	if user == nil && info.Email != "" {
		user, err = s.repos.User.GetByEmail(ctx, info.Email)
		if err != nil {
			return nil, err
		}
	}

	if user == nil {
		user = &domain.User{
			ID:         uuid.NewString(),
			Email:      info.Email,
			Name:       info.Name,
			AvatarURL:  info.AvatarURL,
			Provider:   info.Provider,
			ProviderID: info.ID,
			Role:       domain.RoleUser,
		}
		if err := s.repos.User.Create(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	var name, avatarURL *string
	if info.Name != "" && info.Name != user.Name {
		name = &info.Name
	}
	if info.AvatarURL != "" && info.AvatarURL != user.AvatarURL {
		avatarURL = &info.AvatarURL
	}
	if name != nil || avatarURL != nil {
		if err := s.repos.User.Update(ctx, user.ID, name, avatarURL); err != nil {
			return nil, err
		}
		if name != nil {
			user.Name = *name
		}
		if avatarURL != nil {
			user.AvatarURL = *avatarURL
		}
	}

	return user, nil
}

// verifyProviderIDToken handles the id-token login path, currently a Google
// capability only.
func (s *Service) verifyProviderIDToken(ctx context.Context, p oauth.Provider, idToken string) (*domain.OAuthUserInfo, error) {
	google, ok := p.(*oauth.GoogleProvider)
	if !ok {
		return nil, errors.NewConfigurationError("id-token login is not supported for provider " + string(p.Name()))
	}
	return google.VerifyIDToken(ctx, idToken)
}

func (s *Service) persistToken(ctx context.Context, userID, accessToken, refreshToken, scope string, expiresAt time.Time) error {
	return s.repos.Token.Create(ctx, &domain.UserToken{
		ID:           uuid.NewString(),
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Scope:        scope,
	})
}

// tokenExpiry derives the stored expiry for a provider token record
func (s *Service) tokenExpiry(tokens *domain.OAuthTokenResponse) time.Time {
	if tokens.ExpiresIn > 0 {
		return s.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	}
	return s.now().Add(refreshTokenTTL)
}

func (s *Service) issueResult(user *domain.User, refreshToken string) (*domain.AuthResult, error) {
	accessToken, expiresAt, err := s.codec.Generate(user)
	if err != nil {
		return nil, err
	}

	return &domain.AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
		TokenType:    "Bearer",
	}, nil
}
