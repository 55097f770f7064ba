package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

// RoleRepository implements the repositories.RoleRepository interface
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{db: db, logger: logger}
}

// GetByName retrieves a role by name, ignoring case
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role := &models.Role{}
	err := GetExecutor(ctx, r.db).
		QueryRowContext(ctx, `SELECT id, name FROM roles WHERE lower(name) = lower($1)`, name).
		Scan(&role.ID, &role.Name)
	if err != nil {
		return nil, translateError(err, "get role")
	}
	return role, nil
}

// List returns every role ordered by id
func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, `SELECT id, name FROM roles ORDER BY id`)
	if err != nil {
		return nil, translateError(err, "list roles")
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		role := &models.Role{}
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, translateError(err, "scan role")
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err, "list roles")
	}
	return roles, nil
}
