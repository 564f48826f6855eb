package repository

import (
	"context"
	"time"

	"be-auth/internal/domain"
)

// UserRepository defines the interface for user data operations.
// Lookup methods return (nil, nil) when no matching row exists.
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByProviderID retrieves a user by provider-native id and provider tag
	GetByProviderID(ctx context.Context, providerID string, provider domain.Provider) (*domain.User, error)

	// Create creates a new user
	Create(ctx context.Context, user *domain.User) error

	// Update updates name and/or avatar of an existing user. Nil fields are left unchanged.
	Update(ctx context.Context, id string, name, avatarURL *string) error
}

// TokenRepository defines the interface for persisted refresh-token records
type TokenRepository interface {
	// Create persists a new refresh-token record
	Create(ctx context.Context, token *domain.UserToken) error

	// GetByRefreshToken retrieves a token record by its refresh-token value.
	// Returns (nil, nil) when no matching row exists.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.UserToken, error)

	// UpdateExpiry extends the stored expiry of a token record
	UpdateExpiry(ctx context.Context, tokenID string, expiresAt time.Time) error

	// CleanupExpired removes expired token rows and returns the number deleted
	CleanupExpired(ctx context.Context) (int64, error)
}

// SessionRegistry is the external device/session registry. Listing and
// revoking sessions is independent of token issuance and implemented elsewhere.
type SessionRegistry interface {
	// ListByUser lists active sessions for a user
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)

	// Revoke revokes a single session
	Revoke(ctx context.Context, sessionID string) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	User  UserRepository
	Token TokenRepository
}
