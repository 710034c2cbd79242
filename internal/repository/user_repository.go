package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/jackc/pgx/v5"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// SetTimezone creates the user row on first write.
	SetTimezone(ctx context.Context, id, timezone string) error
}

type userRepository struct {
	db *PostgresDB
}

func NewUserRepository(db *PostgresDB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, COALESCE(email, ''), COALESCE(timezone, ''), created_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Timezone,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (r *userRepository) SetTimezone(ctx context.Context, id, timezone string) error {
	query := `
		INSERT INTO users (id, timezone)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET timezone = EXCLUDED.timezone
	`

	if _, err := r.db.Pool.Exec(ctx, query, id, timezone); err != nil {
		return fmt.Errorf("failed to set user timezone: %w", err)
	}

	return nil
}
