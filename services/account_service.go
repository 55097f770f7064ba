package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/classroom/accounts"
	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
	"github.com/upb/classroom/utils"
)

// ProvisionAccountInput describes an account created by an operator
type ProvisionAccountInput struct {
	Email     string `validate:"required,email"`
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"max=100"`
	Role      string `validate:"omitempty,max=50"`
}

// AccountService handles operator-side account management
type AccountService struct {
	txManager repositories.TransactionManager
	users     repositories.UserRepository
	accounts  repositories.AccountRepository
	roles     repositories.RoleRepository
	logger    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(txManager repositories.TransactionManager, repos *repositories.Repositories, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		txManager: txManager,
		users:     repos.Users,
		accounts:  repos.Accounts,
		roles:     repos.Roles,
		logger:    logger,
	}
}

// ProvisionAccount creates the user and its account in one transaction
func (s *AccountService) ProvisionAccount(ctx context.Context, input ProvisionAccountInput) (*models.Account, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Role = strings.TrimSpace(input.Role)

	if err := utils.ValidateStruct(input); err != nil {
		domainErr := NewDomainError(ErrorTypeValidation, "invalid account input", err)
		for field, msg := range utils.GetValidationFields(err) {
			domainErr.WithDetail(field, msg)
		}
		return nil, domainErr
	}

	email := accounts.NormalizeEmail(input.Email)
	account := &models.Account{
		Email:     email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}

	err := s.txManager.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		existing, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			return NewDomainError(ErrorTypeConflict, ErrDuplicateEmail.Message, nil).
				WithDetail("email", email).
				WithDetail("user_id", existing.ID)
		case !errors.Is(err, repositories.ErrNotFound):
			return WrapInternal("failed to look up user", err)
		}

		if input.Role != "" {
			role, err := s.roles.GetByName(ctx, input.Role)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return NewDomainError(ErrorTypeNotFound, ErrRoleNotFound.Message, err).
						WithDetail("role", input.Role)
				}
				return WrapInternal("failed to look up role", err)
			}
			roleID := role.ID
			account.RoleID = &roleID
			account.RoleName = role.Name
		}

		user := &models.User{
			Email:     email,
			FirstName: input.FirstName,
			LastName:  input.LastName,
		}
		if err := s.users.Create(ctx, user); err != nil {
			// a concurrent provision can still win the unique index
			if errors.Is(err, repositories.ErrConflict) {
				return NewDomainError(ErrorTypeConflict, ErrDuplicateEmail.Message, err).
					WithDetail("email", email)
			}
			return WrapInternal("failed to create user", err)
		}
		account.UserID = user.ID

		if err := s.accounts.Create(ctx, account); err != nil {
			return WrapInternal("failed to create account", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account provisioned",
		zap.Int64("account_id", account.AccountID),
		zap.Int64("user_id", account.UserID),
		zap.String("role", account.RoleName))

	return account, nil
}

// ListRoles returns the roles an account can be provisioned with
func (s *AccountService) ListRoles(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, WrapInternal("failed to list roles", err)
	}
	return roles, nil
}
