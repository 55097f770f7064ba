package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/classroom/accounts"
	"github.com/upb/classroom/identity"
	"github.com/upb/classroom/models"
	"github.com/upb/classroom/session"
)

const (
	testAudience   = "client-123.apps.example.com"
	testSigningKey = "0123456789abcdef0123456789abcdef"
)

var testSessionConfig = session.Config{
	Issuer:     "classroom-api",
	Audience:   "classroom",
	DefaultTTL: time.Hour,
	MaxTTL:     24 * time.Hour,
	ClockSkew:  30 * time.Second,
}

func newTestTokens(t *testing.T) (*session.Issuer, *session.Validator) {
	t.Helper()
	secret, err := session.NewSecret(testSigningKey)
	require.NoError(t, err)
	issuer, err := session.NewIssuer(secret, testSessionConfig)
	require.NoError(t, err)
	validator, err := session.NewValidator(secret, testSessionConfig)
	require.NoError(t, err)
	return issuer, validator
}

func aliceAccount() *models.Account {
	roleID := 2
	return &models.Account{
		AccountID: 7,
		UserID:    10,
		Email:     "alice@upb.edu",
		FirstName: "Alice",
		LastName:  "Anders",
		RoleID:    &roleID,
		RoleName:  models.RoleManager,
	}
}

func aliceIdentity() *identity.VerifiedIdentity {
	return &identity.VerifiedIdentity{
		Subject:     "google-sub-1",
		Email:       "Alice@UPB.edu",
		DisplayName: "Alice A.",
		PictureURL:  "https://example.com/alice.png",
	}
}

type slowDirectory struct {
	calls int
}

func (d *slowDirectory) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	d.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *slowDirectory) Create(ctx context.Context, account *models.Account) error {
	return errors.New("not supported")
}

type noKeys struct{}

func (noKeys) Lookup(ctx context.Context, kid string) (interface{}, error) {
	return nil, identity.ErrUnknownKey
}

func TestLoginService_Login_IssuesToken(t *testing.T) {
	issuer, validator := newTestTokens(t)
	verifier := &MockVerifier{}
	resolver := &MockResolver{}
	recorder := &recorderStub{}

	verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(aliceIdentity(), nil)
	resolver.On("Resolve", mock.Anything, "Alice@UPB.edu").Return(aliceAccount(), nil)

	svc := NewLoginService(verifier, resolver, issuer, recorder, testAudience, zaptest.NewLogger(t))

	result, err := svc.Login(context.Background(), LoginRequest{
		Assertion: "assertion",
		RequestID: "req-1",
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, LoginStateTokenIssued, result.State)
	assert.Equal(t, "10", result.Profile.SubjectID)
	assert.Equal(t, "alice@upb.edu", result.Profile.Email)
	assert.Equal(t, "Alice Anders", result.Profile.Name)
	assert.Equal(t, models.RoleManager, result.Profile.RoleName)
	require.NotNil(t, result.Profile.RoleID)
	assert.Equal(t, 2, *result.Profile.RoleID)
	assert.Equal(t, "https://example.com/alice.png", result.Profile.PictureURL)

	claims, err := validator.Validate(result.Token.Value)
	require.NoError(t, err)
	assert.Equal(t, "10", claims.SubjectID)
	assert.Equal(t, result.Token.ID, claims.TokenID)

	events := recorder.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuthOutcomeTokenIssued, events[0].Outcome)
	require.NotNil(t, events[0].AccountID)
	assert.Equal(t, int64(7), *events[0].AccountID)
	assert.Equal(t, result.Token.ID, events[0].TokenID)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, "10.0.0.1", events[0].IPAddress)

	verifier.AssertExpectations(t)
	resolver.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestLoginService_Login_Rejections(t *testing.T) {
	tests := []struct {
		name         string
		verifyErr    error
		resolveErr   error
		wantType     ErrorType
		wantCategory Category
		wantFailedAt LoginState
		wantReason   string
	}{
		{
			name:         "expired assertion",
			verifyErr:    &identity.AssertionError{Reason: identity.ReasonExpired, Err: errors.New("token is expired")},
			wantType:     ErrorTypeInvalidAssertion,
			wantCategory: CategoryInvalidAssertion,
			wantFailedAt: LoginStateAssertionReceived,
			wantReason:   "expired",
		},
		{
			name:         "unverified email",
			verifyErr:    &identity.AssertionError{Reason: identity.ReasonUnverifiedEmail},
			wantType:     ErrorTypeInvalidAssertion,
			wantCategory: CategoryInvalidAssertion,
			wantFailedAt: LoginStateAssertionReceived,
			wantReason:   "unverified_email",
		},
		{
			name:         "issuer keys unreachable",
			verifyErr:    fmt.Errorf("%w: connection refused", identity.ErrVerifierUnavailable),
			wantType:     ErrorTypeUnavailable,
			wantCategory: CategoryServerError,
			wantFailedAt: LoginStateAssertionReceived,
			wantReason:   "verifier_unavailable",
		},
		{
			name:         "no account for email",
			resolveErr:   accounts.ErrAccountNotFound,
			wantType:     ErrorTypeAccountNotFound,
			wantCategory: CategoryAccountNotFound,
			wantFailedAt: LoginStateVerified,
			wantReason:   "account_not_found",
		},
		{
			name:         "directory down",
			resolveErr:   fmt.Errorf("%w: dial tcp", accounts.ErrDirectoryUnavailable),
			wantType:     ErrorTypeUnavailable,
			wantCategory: CategoryServerError,
			wantFailedAt: LoginStateVerified,
			wantReason:   "directory_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer, _ := newTestTokens(t)
			verifier := &MockVerifier{}
			resolver := &MockResolver{}
			recorder := &recorderStub{}

			if tt.verifyErr != nil {
				verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(nil, tt.verifyErr)
			} else {
				verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(aliceIdentity(), nil)
				resolver.On("Resolve", mock.Anything, "Alice@UPB.edu").Return(nil, tt.resolveErr)
			}

			svc := NewLoginService(verifier, resolver, issuer, recorder, testAudience, zaptest.NewLogger(t))
			result, err := svc.Login(context.Background(), LoginRequest{Assertion: "assertion", RequestID: "req-2"})

			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.wantType, GetErrorType(err))
			assert.Equal(t, tt.wantCategory, CategoryOf(err))
			assert.Equal(t, string(tt.wantFailedAt), GetErrorDetails(err)["failed_at"])

			if tt.verifyErr != nil {
				resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
			}

			events := recorder.all()
			require.Len(t, events, 1)
			assert.Equal(t, models.AuthOutcomeRejected, events[0].Outcome)
			assert.Equal(t, tt.wantReason, events[0].Reason)
			assert.Equal(t, "req-2", events[0].RequestID)
			assert.Empty(t, events[0].TokenID)
		})
	}
}

func TestLoginService_Login_InvalidAssertionCarriesReason(t *testing.T) {
	issuer, _ := newTestTokens(t)
	verifier := &MockVerifier{}
	verifier.On("Verify", mock.Anything, "forged", testAudience).
		Return(nil, &identity.AssertionError{Reason: identity.ReasonBadSignature})

	svc := NewLoginService(verifier, &MockResolver{}, issuer, nil, testAudience, nil)
	_, err := svc.Login(context.Background(), LoginRequest{Assertion: "forged"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidAssertion))
	assert.True(t, errors.Is(err, identity.ErrInvalidAssertion))
	assert.Equal(t, "bad_signature", GetErrorDetails(err)["reason"])
}

func TestLoginService_Login_AudienceNotConfigured(t *testing.T) {
	issuer, _ := newTestTokens(t)
	verifier, err := identity.NewVerifier(identity.Config{
		Issuer:    "https://accounts.google.com",
		ClientIDs: []string{"web-client"},
	}, noKeys{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	resolver := &MockResolver{}
	recorder := &recorderStub{}
	svc := NewLoginService(verifier, resolver, issuer, recorder, "some-other-client", zaptest.NewLogger(t))

	result, err := svc.Login(context.Background(), LoginRequest{Assertion: "header.payload.signature"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, ErrorTypeConfiguration, GetErrorType(err))
	assert.Equal(t, CategoryServerError, CategoryOf(err))
	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)

	events := recorder.all()
	require.Len(t, events, 1)
	assert.Equal(t, "misconfigured", events[0].Reason)
}

func TestLoginService_Login_DirectoryTimeout(t *testing.T) {
	issuer, _ := newTestTokens(t)
	verifier := &MockVerifier{}
	verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(aliceIdentity(), nil)

	directory := &slowDirectory{}
	resolver := accounts.NewResolver(directory, 20*time.Millisecond, zaptest.NewLogger(t))
	recorder := &recorderStub{}

	svc := NewLoginService(verifier, resolver, issuer, recorder, testAudience, zaptest.NewLogger(t))
	result, err := svc.Login(context.Background(), LoginRequest{Assertion: "assertion"})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.True(t, errors.Is(err, accounts.ErrDirectoryUnavailable))
	assert.Equal(t, 1, directory.calls)

	events := recorder.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.AuthOutcomeRejected, events[0].Outcome)
	assert.Equal(t, "directory_unavailable", events[0].Reason)
	assert.Equal(t, "Alice@UPB.edu", events[0].Email)
}

func TestLoginService_Login_IssueFailure(t *testing.T) {
	issuer, _ := newTestTokens(t)
	verifier := &MockVerifier{}
	resolver := &MockResolver{}
	verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(aliceIdentity(), nil)
	resolver.On("Resolve", mock.Anything, "Alice@UPB.edu").Return(&models.Account{AccountID: 1}, nil)

	svc := NewLoginService(verifier, resolver, issuer, nil, testAudience, zaptest.NewLogger(t))
	_, err := svc.Login(context.Background(), LoginRequest{Assertion: "assertion"})

	require.Error(t, err)
	assert.Equal(t, ErrorTypeInternal, GetErrorType(err))
	assert.True(t, errors.Is(err, session.ErrIncompleteAccount))
	assert.Equal(t, string(LoginStateAccountResolved), GetErrorDetails(err)["failed_at"])
}

func TestLoginService_Login_RecorderFailureDoesNotFailLogin(t *testing.T) {
	issuer, _ := newTestTokens(t)
	verifier := &MockVerifier{}
	resolver := &MockResolver{}
	verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(aliceIdentity(), nil)
	resolver.On("Resolve", mock.Anything, "Alice@UPB.edu").Return(aliceAccount(), nil)

	recorder := &recorderStub{err: errors.New("buffer full")}
	svc := NewLoginService(verifier, resolver, issuer, recorder, testAudience, zaptest.NewLogger(t))

	result, err := svc.Login(context.Background(), LoginRequest{Assertion: "assertion"})
	require.NoError(t, err)
	assert.Equal(t, LoginStateTokenIssued, result.State)
}

func TestLoginService_Login_TokensAreDistinct(t *testing.T) {
	issuer, _ := newTestTokens(t)
	verifier := &MockVerifier{}
	resolver := &MockResolver{}
	verifier.On("Verify", mock.Anything, "assertion", testAudience).Return(aliceIdentity(), nil)
	resolver.On("Resolve", mock.Anything, "Alice@UPB.edu").Return(aliceAccount(), nil)

	svc := NewLoginService(verifier, resolver, issuer, nil, testAudience, nil)

	first, err := svc.Login(context.Background(), LoginRequest{Assertion: "assertion"})
	require.NoError(t, err)
	second, err := svc.Login(context.Background(), LoginRequest{Assertion: "assertion"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Token.Value, second.Token.Value)
	assert.NotEqual(t, first.Token.ID, second.Token.ID)
}

func TestLoginService_Mint(t *testing.T) {
	t.Run("ttl override", func(t *testing.T) {
		issuer, validator := newTestTokens(t)
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, "alice@upb.edu").Return(aliceAccount(), nil)
		recorder := &recorderStub{}

		svc := NewLoginService(&MockVerifier{}, resolver, issuer, recorder, testAudience, zaptest.NewLogger(t))
		token, err := svc.Mint(context.Background(), "alice@upb.edu", 2*time.Hour)
		require.NoError(t, err)

		assert.Equal(t, 2*time.Hour, token.ExpiresAt.Sub(token.IssuedAt))
		_, err = validator.Validate(token.Value)
		require.NoError(t, err)

		events := recorder.all()
		require.Len(t, events, 1)
		assert.Equal(t, "operator_mint", events[0].Reason)
		assert.Equal(t, models.AuthOutcomeTokenIssued, events[0].Outcome)
	})

	t.Run("default ttl", func(t *testing.T) {
		issuer, _ := newTestTokens(t)
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, "alice@upb.edu").Return(aliceAccount(), nil)

		svc := NewLoginService(&MockVerifier{}, resolver, issuer, nil, testAudience, nil)
		token, err := svc.Mint(context.Background(), "alice@upb.edu", 0)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, token.ExpiresAt.Sub(token.IssuedAt))
	})

	t.Run("ttl above maximum", func(t *testing.T) {
		issuer, _ := newTestTokens(t)
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, "alice@upb.edu").Return(aliceAccount(), nil)

		svc := NewLoginService(&MockVerifier{}, resolver, issuer, nil, testAudience, nil)
		token, err := svc.Mint(context.Background(), "alice@upb.edu", 48*time.Hour)
		require.Error(t, err)
		assert.Nil(t, token)
		assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
		assert.True(t, errors.Is(err, session.ErrTTLExceedsMaximum))
	})

	t.Run("unknown account", func(t *testing.T) {
		issuer, _ := newTestTokens(t)
		resolver := &MockResolver{}
		resolver.On("Resolve", mock.Anything, "ghost@upb.edu").Return(nil, accounts.ErrAccountNotFound)

		svc := NewLoginService(&MockVerifier{}, resolver, issuer, nil, testAudience, nil)
		_, err := svc.Mint(context.Background(), "ghost@upb.edu", 0)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("empty email", func(t *testing.T) {
		issuer, _ := newTestTokens(t)
		resolver := &MockResolver{}

		svc := NewLoginService(&MockVerifier{}, resolver, issuer, nil, testAudience, nil)
		_, err := svc.Mint(context.Background(), "", 0)
		assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
		resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})
}

func TestLoginState_IsTerminal(t *testing.T) {
	assert.True(t, LoginStateTokenIssued.IsTerminal())
	assert.True(t, LoginStateRejected.IsTerminal())
	assert.False(t, LoginStateStart.IsTerminal())
	assert.False(t, LoginStateVerified.IsTerminal())
}
