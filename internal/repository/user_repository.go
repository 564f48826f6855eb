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

type PostgresUserRepository struct {
	db *database.PostgresDB
}

func NewUserRepository(db *database.PostgresDB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, email, name, avatar_url, provider, provider_id, role, created_at, updated_at`

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.Pool.QueryRow(ctx, query, email))
}

// GetByProviderID retrieves a user by provider-native id and provider tag
func (r *PostgresUserRepository) GetByProviderID(ctx context.Context, providerID string, provider domain.Provider) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider_id = $1 AND provider = $2`
	return r.scanUser(r.db.Pool.QueryRow(ctx, query, providerID, string(provider)))
}

// Create creates a new user
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, name, avatar_url, provider, provider_id, role, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.AvatarURL,
		string(user.Provider),
		user.ProviderID,
		string(user.Role),
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// Update updates name and/or avatar of an existing user. Nil fields are left unchanged.
func (r *PostgresUserRepository) Update(ctx context.Context, id string, name, avatarURL *string) error {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    avatar_url = COALESCE($3, avatar_url),
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, name, avatarURL)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id)
	}

	return nil
}

func (r *PostgresUserRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user      domain.User
		email     *string
		avatarURL *string
		provider  string
		role      string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&user.ID, &email, &user.Name, &avatarURL, &provider, &user.ProviderID, &role, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if email != nil {
		user.Email = *email
	}
	if avatarURL != nil {
		user.AvatarURL = *avatarURL
	}
	user.Provider = domain.Provider(provider)
	user.Role = domain.Role(role)
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt

	return &user, nil
}
