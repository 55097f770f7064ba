package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/upb/classroom/identity"
	"github.com/upb/classroom/models"
	"github.com/upb/classroom/repositories"
)

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, assertion, expectedAudience string) (*identity.VerifiedIdentity, error) {
	args := m.Called(ctx, assertion, expectedAudience)
	if v := args.Get(0); v != nil {
		return v.(*identity.VerifiedIdentity), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if a := args.Get(0); a != nil {
		return a.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

// recorderStub collects events in memory
type recorderStub struct {
	mu     sync.Mutex
	events []*models.AuthEvent
	err    error
}

func (r *recorderStub) Record(event *models.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recorderStub) all() []*models.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.AuthEvent(nil), r.events...)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if a := args.Get(0); a != nil {
		return a.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	args := m.Called(ctx, name)
	if r := args.Get(0); r != nil {
		return r.(*models.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]*models.Role), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeTxManager runs fn directly and remembers whether it was rolled back
type fakeTxManager struct {
	committed  bool
	rolledBack bool
}

func (f *fakeTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &fakeTx{ctx: ctx}, nil
}

func (f *fakeTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if err := fn(ctx, &fakeTx{ctx: ctx}); err != nil {
		f.rolledBack = true
		return err
	}
	f.committed = true
	return nil
}

type fakeTx struct {
	ctx context.Context
}

func (t *fakeTx) Commit() error { return nil }
func (t *fakeTx) Rollback() error { return nil }
func (t *fakeTx) Context() context.Context { return t.ctx }
