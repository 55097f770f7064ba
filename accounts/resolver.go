// Package accounts maps verified identities onto provisioned accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

var (
	// ErrAccountNotFound is returned when no account matches the email
	ErrAccountNotFound = errors.New("account not found")

	// ErrDirectoryUnavailable is returned when the directory cannot answer in time
	ErrDirectoryUnavailable = errors.New("account directory unavailable")
)

// NormalizeEmail trims surrounding whitespace and lowercases the address
// rune by rune, the same mapping Postgres lower() applies to the stored email.
// Full Unicode folding (ß to ss) would never match the directory.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Resolver looks up the account for a verified email
type Resolver struct {
	directory repositories.AccountRepository
	timeout   time.Duration
	logger    *zap.Logger
}

// NewResolver creates a new resolver. A zero timeout disables the per-lookup deadline.
func NewResolver(directory repositories.AccountRepository, timeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{directory: directory, timeout: timeout, logger: logger}
}

// Resolve performs exactly one directory lookup keyed by the normalized email.
// It never creates accounts.
func (r *Resolver) Resolve(ctx context.Context, email string) (*models.Account, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty email", ErrAccountNotFound)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	account, err := r.directory.FindByEmail(ctx, normalized)
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, ErrAccountNotFound
	default:
		r.logger.Warn("account directory lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
}
