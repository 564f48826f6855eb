package domain

import "time"

// OAuthTokenResponse is the result of a provider token exchange or refresh.
// Transient; never persisted as-is.
type OAuthTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// OAuthUserInfo is the normalized identity every provider adapter produces.
// It is the only shape the auth service consumes from adapters.
type OAuthUserInfo struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name,omitempty"`
	AvatarURL string   `json:"avatar_url,omitempty"`
	Provider  Provider `json:"provider"`
}

// UserToken is a persisted refresh-token record managed by the token repository
type UserToken struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the refresh token is past its stored expiry
func (t *UserToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// AuthResult is the response of every successful login or refresh.
// RefreshToken is empty for guest logins.
type AuthResult struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AuthClaims is the decoded claim set of an issued access token
type AuthClaims struct {
	Sub         string   `json:"sub"`
	UserID      string   `json:"userId"`
	Email       string   `json:"email,omitempty"`
	Provider    Provider `json:"provider"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
	Iss         string   `json:"iss"`
	Aud         string   `json:"aud"`
	Iat         int64    `json:"iat"`
	Exp         int64    `json:"exp"`
}

// Session describes an entry in the external device/session registry
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}
