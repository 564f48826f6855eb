package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"be-auth/internal/domain"
	"be-auth/pkg/database"
	"github.com/jackc/pgx/v5"
)

type PostgresTokenRepository struct {
	db *database.PostgresDB
}

func NewTokenRepository(db *database.PostgresDB) *PostgresTokenRepository {
	return &PostgresTokenRepository{db: db}
}

// Create persists a new refresh-token record
func (r *PostgresTokenRepository) Create(ctx context.Context, token *domain.UserToken) error {
	query := `
		INSERT INTO user_tokens (id, user_id, access_token, refresh_token, expires_at, scope, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW())
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		token.ID,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
		token.Scope,
	).Scan(&token.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user token: %w", err)
	}

	return nil
}

// GetByRefreshToken retrieves a token record by its refresh-token value
func (r *PostgresTokenRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*domain.UserToken, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, expires_at, COALESCE(scope, ''), created_at
		FROM user_tokens
		WHERE refresh_token = $1
	`

	var token domain.UserToken
	err := r.db.Pool.QueryRow(ctx, query, refreshToken).Scan(
		&token.ID,
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
		&token.Scope,
		&token.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user token: %w", err)
	}

	return &token, nil
}

// UpdateExpiry extends the stored expiry of a token record
func (r *PostgresTokenRepository) UpdateExpiry(ctx context.Context, tokenID string, expiresAt time.Time) error {
	query := `UPDATE user_tokens SET expires_at = $2 WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, tokenID, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to update token expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("token %s not found", tokenID)
	}

	return nil
}

// CleanupExpired removes expired token rows and returns the number deleted
func (r *PostgresTokenRepository) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM user_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
