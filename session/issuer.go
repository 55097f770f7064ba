package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upb/classroom/config"
	"github.com/upb/classroom/models"
)

var (
	// ErrTTLExceedsMaximum is returned when a TTL override is above the configured maximum
	ErrTTLExceedsMaximum = errors.New("token ttl exceeds the configured maximum")

	// ErrInvalidTTL is returned when a TTL override is zero or negative
	ErrInvalidTTL = errors.New("token ttl must be positive")

	// ErrIncompleteAccount is returned when the account has no user id or email
	ErrIncompleteAccount = errors.New("account is missing user id or email")
)

// Config holds the settings shared by the issuer and the validator
type Config struct {
	Issuer     string
	Audience   string
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	ClockSkew  time.Duration
}

// ConfigFrom maps the application session settings
func ConfigFrom(c config.SessionConfig) Config {
	return Config{
		Issuer:     c.Issuer,
		Audience:   c.Audience,
		DefaultTTL: c.DefaultTTL,
		MaxTTL:     c.MaxTTL,
		ClockSkew:  c.ClockSkew,
	}
}

func (c Config) validate() error {
	if c.Issuer == "" || c.Audience == "" {
		return fmt.Errorf("%w: session issuer and audience are required", config.ErrConfiguration)
	}
	if c.DefaultTTL <= 0 || c.MaxTTL < c.DefaultTTL {
		return fmt.Errorf("%w: session TTL bounds are inconsistent", config.ErrConfiguration)
	}
	if c.ClockSkew < 0 || c.ClockSkew > config.MaxClockSkew {
		return fmt.Errorf("%w: session clock skew out of range", config.ErrConfiguration)
	}
	return nil
}

// Token is a freshly minted session token
type Token struct {
	Value     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Claims    *Claims
}

type issueOptions struct {
	ttl time.Duration
}

// IssueOption customizes a single Issue call
type IssueOption func(*issueOptions)

// WithTTL overrides the default lifetime for one token.
// Used by operator tooling and tests; the maximum TTL still applies.
func WithTTL(ttl time.Duration) IssueOption {
	return func(o *issueOptions) {
		o.ttl = ttl
	}
}

// Issuer mints HS256 session tokens for resolved accounts
type Issuer struct {
	secret Secret
	cfg    Config
	now    func() time.Time
}

// NewIssuer creates a new token issuer
func NewIssuer(secret Secret, cfg Config) (*Issuer, error) {
	if secret.IsZero() {
		return nil, fmt.Errorf("%w: session signing key is required", config.ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Issuer{secret: secret, cfg: cfg, now: time.Now}, nil
}

// Issue signs a token describing account.
// It is pure apart from reading the clock and generating the token id.
func (i *Issuer) Issue(account *models.Account, opts ...IssueOption) (*Token, error) {
	if account == nil || account.UserID == 0 || strings.TrimSpace(account.Email) == "" {
		return nil, ErrIncompleteAccount
	}

	o := issueOptions{ttl: i.cfg.DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	if o.ttl > i.cfg.MaxTTL {
		return nil, fmt.Errorf("%w: %s > %s", ErrTTLExceedsMaximum, o.ttl, i.cfg.MaxTTL)
	}

	// NumericDate has second precision
	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(o.ttl)
	tokenID := uuid.NewString()

	tc := &tokenClaims{
		Email:  account.Email,
		Name:   account.FullName(),
		RoleID: account.RoleID,
		Role:   strings.TrimSpace(account.RoleName),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   strconv.FormatInt(account.UserID, 10),
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(i.secret.bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &Token{
		Value:     signed,
		ID:        tokenID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Claims:    tc.toClaims(),
	}, nil
}
