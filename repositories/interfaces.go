package repositories

import (
	"context"
	"errors"

	"github.com/upb/classroom/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an insert violates a uniqueness constraint
	ErrConflict = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// AccountRepository is the account directory read at login time
type AccountRepository interface {
	// FindByEmail returns the account whose user email equals the normalized email.
	// Returns ErrNotFound when there is none.
	FindByEmail(ctx context.Context, email string) (*models.Account, error)

	// Create links an existing user to a new account and sets account.AccountID
	Create(ctx context.Context, account *models.Account) error
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create inserts the user and sets user.ID
	Create(ctx context.Context, user *models.User) error

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// RoleRepository handles role lookups
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
}

// AuthEventRepository persists the login audit trail
type AuthEventRepository interface {
	Insert(ctx context.Context, event *models.AuthEvent) error

	// ListRecent returns the newest events first
	ListRecent(ctx context.Context, limit int) ([]*models.AuthEvent, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Accounts   AccountRepository
	Users      UserRepository
	Roles      RoleRepository
	AuthEvents AuthEventRepository
}
