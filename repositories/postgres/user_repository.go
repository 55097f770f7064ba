package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, first_name, last_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return translateError(err, "create user")
	}

	r.logger.Debug("user created", zap.Int64("id", user.ID))
	return nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, first_name, last_name, created_at
		FROM users
		WHERE lower(email) = $1
	`

	user := &models.User{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, translateError(err, "get user")
	}

	return user, nil
}
