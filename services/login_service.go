package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/upb/classroom/accounts"
	"github.com/upb/classroom/config"
	"github.com/upb/classroom/identity"
	"github.com/upb/classroom/models"
	"github.com/upb/classroom/session"
)

// AssertionVerifier checks an identity assertion from the external provider
type AssertionVerifier interface {
	Verify(ctx context.Context, assertion, expectedAudience string) (*identity.VerifiedIdentity, error)
}

// AccountResolver maps a verified email onto a provisioned account
type AccountResolver interface {
	Resolve(ctx context.Context, email string) (*models.Account, error)
}

// TokenIssuer mints session tokens
type TokenIssuer interface {
	Issue(account *models.Account, opts ...session.IssueOption) (*session.Token, error)
}

// EventRecorder accepts audit events without blocking the caller
type EventRecorder interface {
	Record(event *models.AuthEvent) error
}

// LoginState is a step of the login flow
type LoginState string

const (
	LoginStateStart             LoginState = "start"
	LoginStateAssertionReceived LoginState = "assertion_received"
	LoginStateVerified          LoginState = "verified"
	LoginStateAccountResolved   LoginState = "account_resolved"
	LoginStateTokenIssued       LoginState = "token_issued"
	LoginStateRejected          LoginState = "rejected"
)

// IsTerminal reports whether no further transition can happen
func (s LoginState) IsTerminal() bool {
	return s == LoginStateTokenIssued || s == LoginStateRejected
}

// Audit reasons for failures that are not assertion rejections
const (
	reasonAccountNotFound      = "account_not_found"
	reasonVerifierUnavailable  = "verifier_unavailable"
	reasonDirectoryUnavailable = "directory_unavailable"
	reasonMisconfigured        = "misconfigured"
	reasonIssueFailed          = "issue_failed"
	reasonOperatorMint         = "operator_mint"
)

// LoginRequest carries one login attempt
type LoginRequest struct {
	Assertion string
	RequestID string
	IPAddress string
	UserAgent string
}

// Profile is the public view of the logged-in account
type Profile struct {
	SubjectID  string `json:"subjectId"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	RoleID     *int   `json:"roleId,omitempty"`
	RoleName   string `json:"roleName,omitempty"`
	PictureURL string `json:"pictureUrl,omitempty"`
}

// LoginResult is returned when a token was issued
type LoginResult struct {
	Token   *session.Token
	Profile Profile
	State   LoginState
}

// LoginService drives an identity assertion through verification,
// account resolution and token issuance. Attempts are never retried.
type LoginService struct {
	verifier AssertionVerifier
	resolver AccountResolver
	issuer   TokenIssuer
	recorder EventRecorder
	audience string
	logger   *zap.Logger
}

// NewLoginService creates a new login service.
// audience is the client id assertions must be addressed to. recorder may be nil.
func NewLoginService(
	verifier AssertionVerifier,
	resolver AccountResolver,
	issuer TokenIssuer,
	recorder EventRecorder,
	audience string,
	logger *zap.Logger,
) *LoginService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginService{
		verifier: verifier,
		resolver: resolver,
		issuer:   issuer,
		recorder: recorder,
		audience: audience,
		logger:   logger,
	}
}

// loginAttempt tracks the state of a single Login call
type loginAttempt struct {
	state LoginState
	req   LoginRequest
	email string
}

// advance is a no-op once the attempt has reached a terminal state
func (a *loginAttempt) advance(next LoginState) {
	if a.state.IsTerminal() {
		return
	}
	a.state = next
}

// Login exchanges an identity assertion for a session token
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	attempt := &loginAttempt{state: LoginStateStart, req: req}
	attempt.advance(LoginStateAssertionReceived)

	verified, err := s.verifier.Verify(ctx, req.Assertion, s.audience)
	if err != nil {
		return nil, s.reject(attempt, err)
	}
	attempt.email = verified.Email
	attempt.advance(LoginStateVerified)

	account, err := s.resolver.Resolve(ctx, verified.Email)
	if err != nil {
		return nil, s.reject(attempt, err)
	}
	attempt.advance(LoginStateAccountResolved)

	token, err := s.issuer.Issue(account)
	if err != nil {
		return nil, s.reject(attempt, err)
	}
	attempt.advance(LoginStateTokenIssued)

	s.record(models.NewAuthEvent(models.AuthOutcomeTokenIssued).
		WithAccount(account.AccountID, token.Claims.SubjectID).
		WithRequest(req.RequestID, req.IPAddress, req.UserAgent), account.Email, token.ID)

	s.logger.Info("login succeeded",
		zap.String("request_id", req.RequestID),
		zap.Int64("account_id", account.AccountID),
		zap.String("subject", token.Claims.SubjectID),
		zap.String("token_id", token.ID),
		zap.Time("expires_at", token.ExpiresAt))

	return &LoginResult{
		Token: token,
		Profile: Profile{
			SubjectID:  token.Claims.SubjectID,
			Email:      token.Claims.Email,
			Name:       token.Claims.Name,
			RoleID:     token.Claims.RoleID,
			RoleName:   token.Claims.RoleName,
			PictureURL: verified.PictureURL,
		},
		State: attempt.state,
	}, nil
}

// Mint resolves email and issues a token without an identity assertion.
// It backs the operator CLI; a zero ttl uses the configured default.
func (s *LoginService) Mint(ctx context.Context, email string, ttl time.Duration) (*session.Token, error) {
	if email == "" {
		return nil, NewDomainError(ErrorTypeValidation, "email is required", nil)
	}

	account, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		return nil, translateLoginError(err, LoginStateVerified)
	}

	var opts []session.IssueOption
	if ttl != 0 {
		opts = append(opts, session.WithTTL(ttl))
	}

	token, err := s.issuer.Issue(account, opts...)
	if err != nil {
		if errors.Is(err, session.ErrTTLExceedsMaximum) || errors.Is(err, session.ErrInvalidTTL) {
			return nil, NewDomainError(ErrorTypeValidation, err.Error(), err)
		}
		return nil, translateLoginError(err, LoginStateAccountResolved)
	}

	event := models.NewAuthEvent(models.AuthOutcomeTokenIssued).
		WithAccount(account.AccountID, token.Claims.SubjectID)
	event.Reason = reasonOperatorMint
	s.record(event, account.Email, token.ID)

	s.logger.Info("token minted",
		zap.Int64("account_id", account.AccountID),
		zap.String("token_id", token.ID),
		zap.Time("expires_at", token.ExpiresAt))

	return token, nil
}

// reject moves the attempt to Rejected, records it and returns the wire error
func (s *LoginService) reject(attempt *loginAttempt, err error) error {
	failedAt := attempt.state
	attempt.advance(LoginStateRejected)

	domainErr := translateLoginError(err, failedAt)
	reason := auditReason(err)

	event := models.NewAuthEvent(models.AuthOutcomeRejected).
		WithRequest(attempt.req.RequestID, attempt.req.IPAddress, attempt.req.UserAgent)
	event.Reason = reason
	s.record(event, attempt.email, "")

	fields := []zap.Field{
		zap.String("request_id", attempt.req.RequestID),
		zap.String("failed_at", string(failedAt)),
		zap.String("reason", reason),
		zap.Error(err),
	}
	if domainErr.Category() == CategoryServerError {
		s.logger.Error("login failed", fields...)
	} else {
		s.logger.Warn("login rejected", fields...)
	}

	return domainErr
}

func (s *LoginService) record(event *models.AuthEvent, email, tokenID string) {
	if s.recorder == nil {
		return
	}
	event.Email = email
	event.TokenID = tokenID
	if err := s.recorder.Record(event); err != nil {
		s.logger.Warn("auth event not recorded",
			zap.String("outcome", string(event.Outcome)),
			zap.Error(err))
	}
}

// translateLoginError maps component errors onto the login outcome categories
func translateLoginError(err error, failedAt LoginState) *DomainError {
	var domainErr *DomainError
	switch {
	case errors.Is(err, identity.ErrInvalidAssertion):
		domainErr = NewDomainError(ErrorTypeInvalidAssertion, ErrInvalidAssertion.Message, err).
			WithDetail("reason", string(identity.ReasonOf(err)))
	case errors.Is(err, accounts.ErrAccountNotFound):
		domainErr = NewDomainError(ErrorTypeAccountNotFound, ErrAccountNotFound.Message, err)
	case errors.Is(err, identity.ErrVerifierUnavailable):
		domainErr = NewDomainError(ErrorTypeUnavailable, ErrVerifierUnavailable.Message, err)
	case errors.Is(err, accounts.ErrDirectoryUnavailable):
		domainErr = NewDomainError(ErrorTypeUnavailable, ErrDirectoryUnavailable.Message, err)
	case errors.Is(err, config.ErrConfiguration):
		domainErr = NewDomainError(ErrorTypeConfiguration, ErrMisconfigured.Message, err)
	default:
		domainErr = NewDomainError(ErrorTypeInternal, "failed to issue session token", err)
	}
	return domainErr.WithDetail("failed_at", string(failedAt))
}

func auditReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidAssertion):
		return string(identity.ReasonOf(err))
	case errors.Is(err, accounts.ErrAccountNotFound):
		return reasonAccountNotFound
	case errors.Is(err, identity.ErrVerifierUnavailable):
		return reasonVerifierUnavailable
	case errors.Is(err, accounts.ErrDirectoryUnavailable):
		return reasonDirectoryUnavailable
	case errors.Is(err, config.ErrConfiguration):
		return reasonMisconfigured
	default:
		return reasonIssueFailed
	}
}
