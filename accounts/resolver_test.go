package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockDirectory) Create(ctx context.Context, account *models.Account) error {
	return m.Called(ctx, account).Error(0)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@x.edu", "alice@x.edu"},
		{"  Alice@X.EDU ", "alice@x.edu"},
		{"\tBOB@Example.com\n", "bob@example.com"},
		{"Straße@example.com", "straße@example.com"},
		{"İlkay@Example.com", "ilkay@example.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.in))
		})
	}
}

func TestResolve_Found(t *testing.T) {
	directory := &mockDirectory{}
	roleID := 2
	alice := &models.Account{AccountID: 1, UserID: 10, Email: "alice@x.edu", FirstName: "Alice", RoleID: &roleID, RoleName: "Manager"}
	directory.On("FindByEmail", mock.Anything, "alice@x.edu").Return(alice, nil).Once()

	resolver := NewResolver(directory, time.Second, zaptest.NewLogger(t))
	account, err := resolver.Resolve(context.Background(), " Alice@X.edu ")

	require.NoError(t, err)
	assert.Same(t, alice, account)
	directory.AssertExpectations(t)
	directory.AssertNumberOfCalls(t, "FindByEmail", 1)
}

func TestResolve_NonASCIIEmailKeepsStoredForm(t *testing.T) {
	directory := &mockDirectory{}
	stored := &models.Account{AccountID: 4, UserID: 12, Email: "Straße@upb.edu", FirstName: "Jonas"}
	directory.On("FindByEmail", mock.Anything, "straße@upb.edu").Return(stored, nil).Once()

	resolver := NewResolver(directory, time.Second, zaptest.NewLogger(t))
	account, err := resolver.Resolve(context.Background(), "STRAßE@upb.edu")

	require.NoError(t, err)
	assert.Same(t, stored, account)
	directory.AssertExpectations(t)
}

func TestResolve_NotFound(t *testing.T) {
	directory := &mockDirectory{}
	directory.On("FindByEmail", mock.Anything, "ghost@x.edu").Return(nil, repositories.ErrNotFound).Once()

	resolver := NewResolver(directory, time.Second, zaptest.NewLogger(t))
	account, err := resolver.Resolve(context.Background(), "ghost@x.edu")

	assert.Nil(t, account)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.False(t, errors.Is(err, ErrDirectoryUnavailable))
	directory.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestResolve_EmptyEmailSkipsLookup(t *testing.T) {
	directory := &mockDirectory{}
	resolver := NewResolver(directory, time.Second, zaptest.NewLogger(t))

	_, err := resolver.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	directory.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestResolve_TransportFailure(t *testing.T) {
	directory := &mockDirectory{}
	directory.On("FindByEmail", mock.Anything, "alice@x.edu").Return(nil, errors.New("connection refused")).Once()

	resolver := NewResolver(directory, time.Second, zaptest.NewLogger(t))
	_, err := resolver.Resolve(context.Background(), "alice@x.edu")

	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.False(t, errors.Is(err, ErrAccountNotFound))
}

func TestResolve_TimeoutIsUnavailable(t *testing.T) {
	directory := &mockDirectory{}
	directory.On("FindByEmail", mock.Anything, "alice@x.edu").
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()

	resolver := NewResolver(directory, 20*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	_, err := resolver.Resolve(context.Background(), "alice@x.edu")

	assert.ErrorIs(t, err, ErrDirectoryUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}
