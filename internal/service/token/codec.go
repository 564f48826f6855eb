// Package token implements the stateless access-token codec: it encodes a
// user and role into a signed, claim-bearing JWT and verifies/decodes tokens
// issued by this service.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"be-auth/internal/domain"
)

// Codec signs and verifies the service's own access tokens with a shared secret
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewCodec creates a token codec. ttl defaults to one hour when zero.
func NewCodec(secret, issuer, audience string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the configured access-token lifetime
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Generate encodes the user into a signed access token and returns the token
// with its expiry time.
func (c *Codec) Generate(user *domain.User) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.ttl)

	claims := jwt.MapClaims{
		"sub":         user.ID,
		"userId":      user.ID,
		"email":       user.Email,
		"provider":    string(user.Provider),
		"role":        string(user.Role),
		"permissions": user.Role.Permissions(),
		"iss":         c.issuer,
		"aud":         c.audience,
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates signature, issuer, audience and expiry together and decodes
// the claim set. Any failure, including malformed input, yields ok=false with
// no further detail; callers must not be able to distinguish an expired token
// from a forged one.
func (c *Codec) Verify(tokenString string) (*domain.AuthClaims, bool) {
	token, err := jwt.Parse(tokenString,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return c.secret, nil
		},
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	decoded := &domain.AuthClaims{
		Sub:      stringClaim(claims, "sub"),
		UserID:   stringClaim(claims, "userId"),
		Email:    stringClaim(claims, "email"),
		Provider: domain.Provider(stringClaim(claims, "provider")),
		Role:     domain.Role(stringClaim(claims, "role")),
		Iss:      stringClaim(claims, "iss"),
		Aud:      stringClaim(claims, "aud"),
		Iat:      int64Claim(claims, "iat"),
		Exp:      int64Claim(claims, "exp"),
	}

	if raw, ok := claims["permissions"].([]interface{}); ok {
		perms := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				perms = append(perms, s)
			}
		}
		decoded.Permissions = perms
	}

	if decoded.UserID == "" {
		return nil, false
	}

	return decoded, true
}

// Helper functions to safely extract values from the claims map
func stringClaim(m jwt.MapClaims, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func int64Claim(m jwt.MapClaims, key string) int64 {
	if val, ok := m[key].(float64); ok {
		return int64(val)
	}
	return 0
}
