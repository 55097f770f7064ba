package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAssertion matches every rejection of an identity assertion
	ErrInvalidAssertion = errors.New("invalid identity assertion")

	// ErrVerifierUnavailable is returned when the issuer keys cannot be obtained
	ErrVerifierUnavailable = errors.New("identity verifier unavailable")

	// ErrUnknownKey is returned when no issuer key matches the assertion key id
	ErrUnknownKey = errors.New("unknown signing key")
)

// Reason explains why an assertion was rejected
type Reason string

const (
	ReasonMalformed       Reason = "malformed"
	ReasonBadSignature    Reason = "bad_signature"
	ReasonUnknownKey      Reason = "unknown_key"
	ReasonWrongAudience   Reason = "wrong_audience"
	ReasonWrongIssuer     Reason = "wrong_issuer"
	ReasonExpired         Reason = "expired"
	ReasonNotYetValid     Reason = "not_yet_valid"
	ReasonMissingEmail    Reason = "missing_email"
	ReasonUnverifiedEmail Reason = "unverified_email"
)

// AssertionError is returned for assertions that fail verification
type AssertionError struct {
	Reason Reason
	Err    error
}

func (e *AssertionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid identity assertion (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid identity assertion (%s)", e.Reason)
}

func (e *AssertionError) Unwrap() error { return e.Err }

// Is makes every AssertionError match ErrInvalidAssertion
func (e *AssertionError) Is(target error) bool {
	return target == ErrInvalidAssertion
}

func reject(reason Reason, err error) *AssertionError {
	return &AssertionError{Reason: reason, Err: err}
}

// ReasonOf extracts the rejection reason from err, or "" if err is not an assertion error
func ReasonOf(err error) Reason {
	var assertionErr *AssertionError
	if errors.As(err, &assertionErr) {
		return assertionErr.Reason
	}
	return ""
}
