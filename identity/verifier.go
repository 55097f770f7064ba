package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/upb/classroom/config"
)

// signingAlgorithms lists the asymmetric algorithms accepted from the issuer
var signingAlgorithms = []string{"RS256", "RS384", "RS512", "PS256", "ES256", "ES384"}

// KeyLookup resolves an issuer public key by key id
type KeyLookup interface {
	Lookup(ctx context.Context, kid string) (interface{}, error)
}

// Config describes the trusted issuer and accepted audiences
type Config struct {
	Issuer        string
	IssuerAliases []string
	ClientIDs     []string
	ClockSkew     time.Duration
}

// ConfigFrom maps the application identity settings
func ConfigFrom(c config.IdentityConfig) Config {
	return Config{
		Issuer:        c.Issuer,
		IssuerAliases: c.IssuerAliases,
		ClientIDs:     c.ClientIDs,
		ClockSkew:     c.ClockSkew,
	}
}

// VerifiedIdentity is the outcome of a successful verification
type VerifiedIdentity struct {
	Subject     string
	Email       string
	DisplayName string
	PictureURL  string
}

// assertionClaims is the body of an OIDC ID token
type assertionClaims struct {
	Email         string        `json:"email"`
	EmailVerified *flexibleBool `json:"email_verified,omitempty"`
	Name          string        `json:"name"`
	Picture       string        `json:"picture"`
	jwt.RegisteredClaims
}

// flexibleBool accepts both true and "true"; some issuers send booleans as strings
type flexibleBool bool

func (b *flexibleBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexibleBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("email_verified: %w", err)
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("email_verified: %w", err)
	}
	*b = flexibleBool(parsed)
	return nil
}

// Verifier checks identity assertions issued by the trusted provider
type Verifier struct {
	cfg     Config
	keys    KeyLookup
	logger  *zap.Logger
	issuers []string
	now     func() time.Time
}

// NewVerifier creates a new assertion verifier
func NewVerifier(cfg Config, keys KeyLookup, logger *zap.Logger) (*Verifier, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("%w: identity issuer is required", config.ErrConfiguration)
	}
	if len(cfg.ClientIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one client id is required", config.ErrConfiguration)
	}
	if keys == nil {
		return nil, fmt.Errorf("%w: key lookup is required", config.ErrConfiguration)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	issuers := append([]string{cfg.Issuer}, cfg.IssuerAliases...)
	return &Verifier{cfg: cfg, keys: keys, logger: logger, issuers: issuers, now: time.Now}, nil
}

// Verify checks the assertion's signature, audience, issuer, validity window and email.
// expectedAudience must be one of the configured client ids.
func (v *Verifier) Verify(ctx context.Context, assertion, expectedAudience string) (*VerifiedIdentity, error) {
	if expectedAudience == "" || !slices.Contains(v.cfg.ClientIDs, expectedAudience) {
		return nil, fmt.Errorf("%w: audience %q is not a configured client id", config.ErrConfiguration, expectedAudience)
	}

	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, reject(ReasonMalformed, errors.New("empty assertion"))
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(signingAlgorithms),
		jwt.WithAudience(expectedAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.now),
	)

	claims := &assertionClaims{}
	_, err := parser.ParseWithClaims(assertion, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.keys.Lookup(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, ErrVerifierUnavailable) {
			return nil, err
		}
		return nil, reject(classify(err), err)
	}

	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, reject(ReasonWrongIssuer, fmt.Errorf("issuer %q is not trusted", claims.Issuer))
	}

	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, reject(ReasonMissingEmail, nil)
	}
	if claims.EmailVerified != nil && !bool(*claims.EmailVerified) {
		return nil, reject(ReasonUnverifiedEmail, nil)
	}

	return &VerifiedIdentity{
		Subject:     claims.Subject,
		Email:       email,
		DisplayName: strings.TrimSpace(claims.Name),
		PictureURL:  claims.Picture,
	}, nil
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return ReasonUnknownKey
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonWrongAudience
	default:
		return ReasonMalformed
	}
}
