package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthOutcome is the terminal state of a login attempt
type AuthOutcome string

const (
	AuthOutcomeTokenIssued AuthOutcome = "token_issued"
	AuthOutcomeRejected    AuthOutcome = "rejected"
)

// AuthEvent records one login attempt for the audit trail
type AuthEvent struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	Outcome    AuthOutcome `json:"outcome" db:"outcome"`
	Reason     string      `json:"reason,omitempty" db:"reason"`
	Email      string      `json:"email,omitempty" db:"email"`
	AccountID  *int64      `json:"account_id,omitempty" db:"account_id"`
	SubjectID  string      `json:"subject_id,omitempty" db:"subject_id"`
	TokenID    string      `json:"token_id,omitempty" db:"token_id"`
	RequestID  string      `json:"request_id,omitempty" db:"request_id"`
	IPAddress  string      `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  string      `json:"user_agent,omitempty" db:"user_agent"`
	OccurredAt time.Time   `json:"occurred_at" db:"occurred_at"`
}

// NewAuthEvent creates a new AuthEvent stamped with a fresh id and the current time
func NewAuthEvent(outcome AuthOutcome) *AuthEvent {
	return &AuthEvent{
		ID:         uuid.New(),
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
}

// WithAccount attaches the resolved account to the event
func (e *AuthEvent) WithAccount(accountID int64, subjectID string) *AuthEvent {
	e.AccountID = &accountID
	e.SubjectID = subjectID
	return e
}

// WithRequest attaches request metadata to the event
func (e *AuthEvent) WithRequest(requestID, ipAddress, userAgent string) *AuthEvent {
	e.RequestID = requestID
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}
