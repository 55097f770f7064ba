package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/upb/classroom/config"
)

// ErrTokenInvalid matches every session token rejection
var ErrTokenInvalid = errors.New("invalid session token")

// Reason explains why a token was rejected
type Reason string

const (
	ReasonMalformed     Reason = "malformed"
	ReasonBadSignature  Reason = "bad_signature"
	ReasonExpired       Reason = "expired"
	ReasonNotYetValid   Reason = "not_yet_valid"
	ReasonWrongIssuer   Reason = "wrong_issuer"
	ReasonWrongAudience Reason = "wrong_audience"
	ReasonMissingClaims Reason = "missing_claims"
)

// InvalidTokenError carries the rejection reason of a session token
type InvalidTokenError struct {
	Reason Reason
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid session token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid session token (%s)", e.Reason)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

// Is makes every InvalidTokenError match ErrTokenInvalid
func (e *InvalidTokenError) Is(target error) bool {
	return target == ErrTokenInvalid
}

// ReasonOf extracts the rejection reason from err, or "" if err is not a token error
func ReasonOf(err error) Reason {
	var tokenErr *InvalidTokenError
	if errors.As(err, &tokenErr) {
		return tokenErr.Reason
	}
	return ""
}

// Validator checks session tokens presented to resource servers
type Validator struct {
	secret Secret
	cfg    Config
	now    func() time.Time
	parser *jwt.Parser
}

// NewValidator creates a new token validator
func NewValidator(secret Secret, cfg Config) (*Validator, error) {
	if secret.IsZero() {
		return nil, fmt.Errorf("%w: session signing key is required", config.ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	v := &Validator{secret: secret, cfg: cfg, now: time.Now}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		// one extra second since the parser treats exp as exclusive; the
		// window is enforced inclusively in checkWindow
		jwt.WithLeeway(cfg.ClockSkew+time.Second),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v, nil
}

// Validate verifies the signature and claims of token.
// It never returns claims together with an error.
func (v *Validator) Validate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &InvalidTokenError{Reason: ReasonMalformed, Err: errors.New("empty token")}
	}

	tc := &tokenClaims{}
	parsed, err := v.parser.ParseWithClaims(token, tc, func(*jwt.Token) (interface{}, error) {
		return v.secret.bytes(), nil
	})
	if err != nil {
		return nil, &InvalidTokenError{Reason: classify(err), Err: err}
	}
	if !parsed.Valid {
		return nil, &InvalidTokenError{Reason: ReasonBadSignature}
	}

	if err := v.checkWindow(tc); err != nil {
		return nil, err
	}

	if tc.Subject == "" || tc.Email == "" || tc.ID == "" {
		return nil, &InvalidTokenError{Reason: ReasonMissingClaims, Err: errors.New("sub, email and jti are required")}
	}

	return tc.toClaims(), nil
}

// checkWindow accepts tokens within [nbf-skew, exp+skew], both ends included
func (v *Validator) checkWindow(tc *tokenClaims) error {
	now := v.now()
	skew := v.cfg.ClockSkew

	if now.After(tc.ExpiresAt.Time.Add(skew)) {
		return &InvalidTokenError{Reason: ReasonExpired, Err: jwt.ErrTokenExpired}
	}
	if tc.NotBefore != nil && now.Add(skew).Before(tc.NotBefore.Time) {
		return &InvalidTokenError{Reason: ReasonNotYetValid, Err: jwt.ErrTokenNotValidYet}
	}
	if tc.IssuedAt != nil && now.Add(skew).Before(tc.IssuedAt.Time) {
		return &InvalidTokenError{Reason: ReasonNotYetValid, Err: jwt.ErrTokenUsedBeforeIssued}
	}
	return nil
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ReasonBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ReasonNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ReasonWrongIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ReasonWrongAudience
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ReasonMissingClaims
	default:
		return ReasonMalformed
	}
}
