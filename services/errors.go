package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeInvalidAssertion ErrorType = "invalid_assertion"
	ErrorTypeAccountNotFound  ErrorType = "account_not_found"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeNotFound         ErrorType = "not_found"
	ErrorTypeConflict         ErrorType = "conflict"
	ErrorTypeUnavailable      ErrorType = "unavailable"
	ErrorTypeConfiguration    ErrorType = "configuration"
	ErrorTypeInternal         ErrorType = "internal"
)

// Category is the coarse outcome a login client is allowed to see
type Category string

const (
	CategoryInvalidAssertion Category = "InvalidAssertion"
	CategoryAccountNotFound  Category = "AccountNotFound"
	CategoryServerError      Category = "ServerError"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Category collapses the error type into the three login outcomes
func (e *DomainError) Category() Category {
	switch e.Type {
	case ErrorTypeInvalidAssertion:
		return CategoryInvalidAssertion
	case ErrorTypeAccountNotFound:
		return CategoryAccountNotFound
	default:
		return CategoryServerError
	}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	ErrInvalidAssertion = NewDomainError(ErrorTypeInvalidAssertion, "identity assertion rejected", nil)
	ErrAccountNotFound  = NewDomainError(ErrorTypeAccountNotFound, "no account for this identity", nil)

	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrDuplicateEmail = NewDomainError(ErrorTypeConflict, "email already exists", nil)
	ErrRoleNotFound   = NewDomainError(ErrorTypeNotFound, "role not found", nil)

	ErrVerifierUnavailable  = NewDomainError(ErrorTypeUnavailable, "identity provider keys unavailable", nil)
	ErrDirectoryUnavailable = NewDomainError(ErrorTypeUnavailable, "account directory unavailable", nil)
	ErrMisconfigured        = NewDomainError(ErrorTypeConfiguration, "server misconfigured", nil)
	ErrInternal             = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// CategoryOf returns the login category of err; non-domain errors are server errors
func CategoryOf(err error) Category {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category()
	}
	return CategoryServerError
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
