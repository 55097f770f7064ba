package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

// AccountRepository implements the repositories.AccountRepository interface
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) repositories.AccountRepository {
	return &AccountRepository{db: db, logger: logger}
}

// FindByEmail joins users, accounts and roles for one email.
// email is expected to be normalized already; the comparison lowercases the stored value.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `
		SELECT a.id, u.id, u.email, u.first_name, u.last_name, a.role_id, COALESCE(r.name, '')
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		LEFT JOIN roles r ON r.id = a.role_id
		WHERE lower(u.email) = $1
		LIMIT 1
	`

	var (
		account models.Account
		roleID  sql.NullInt32
	)

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, email).Scan(
		&account.AccountID,
		&account.UserID,
		&account.Email,
		&account.FirstName,
		&account.LastName,
		&roleID,
		&account.RoleName,
	)
	if err != nil {
		return nil, translateError(err, "find account")
	}

	if roleID.Valid {
		id := int(roleID.Int32)
		account.RoleID = &id
	}

	return &account, nil
}

// Create inserts the account row for account.UserID
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (user_id, role_id)
		VALUES ($1, $2)
		RETURNING id
	`

	var roleID interface{}
	if account.RoleID != nil {
		roleID = *account.RoleID
	}

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, account.UserID, roleID).Scan(&account.AccountID)
	if err != nil {
		return translateError(err, "create account")
	}

	r.logger.Debug("account created",
		zap.Int64("account_id", account.AccountID),
		zap.Int64("user_id", account.UserID))
	return nil
}
