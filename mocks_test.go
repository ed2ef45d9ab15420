package accounts_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// testRepoManager wires mock repositories behind the manager interface.
// RunInTx invokes the body directly; the mocks never touch the tx handle.
type testRepoManager struct {
	users     accounts.Users
	groups    accounts.Groups
	throttles accounts.Throttles
}

func (m *testRepoManager) Validate() error { return nil }
func (m *testRepoManager) MustValidate()   {}

func (m *testRepoManager) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *testRepoManager) Users() accounts.Users         { return m.users }
func (m *testRepoManager) Groups() accounts.Groups       { return m.groups }
func (m *testRepoManager) Throttles() accounts.Throttles { return m.throttles }

// MockUsers mocks the methods the lifecycle exercises. The embedded
// interface satisfies the rest; calling an unmocked method panics, which
// is exactly what we want from a test double.
type MockUsers struct {
	mock.Mock
	accounts.Users
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, tx, user)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*accounts.User, error) {
	args := m.Called(ctx, identifier)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*accounts.User, error) {
	args := m.Called(ctx, tx, identifier)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUsers) FindByLoginTx(ctx context.Context, tx bun.IDB, email string) (*accounts.User, error) {
	args := m.Called(ctx, tx, email)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *accounts.User, criteria ...repository.UpdateCriteria) (*accounts.User, error) {
	args := m.Called(ctx, tx, record)
	return userOrNil(args.Get(0)), args.Error(1)
}

func (m *MockUsers) ConsumeActivationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, tx, id, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsers) SetGroupsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, add, remove []uuid.UUID) error {
	args := m.Called(ctx, tx, userID, add, remove)
	return args.Error(0)
}

func (m *MockUsers) ListGroupIDsTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, tx, userID)
	if v := args.Get(0); v != nil {
		return v.([]uuid.UUID), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) ListWithGroups(ctx context.Context) ([]*accounts.User, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*accounts.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func userOrNil(v any) *accounts.User {
	if v == nil {
		return nil
	}
	return v.(*accounts.User)
}

type MockGroups struct {
	mock.Mock
	accounts.Groups
}

func (m *MockGroups) ListAllTx(ctx context.Context, tx bun.IDB) ([]*accounts.Group, error) {
	args := m.Called(ctx, tx)
	if v := args.Get(0); v != nil {
		return v.([]*accounts.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockThrottles struct {
	mock.Mock
	accounts.Throttles
}

func (m *MockThrottles) GetOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*accounts.Throttle, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.(*accounts.Throttle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThrottles) RecordFailure(ctx context.Context, record *accounts.Throttle, at time.Time) (*accounts.Throttle, error) {
	args := m.Called(ctx, record, at)
	if v := args.Get(0); v != nil {
		return v.(*accounts.Throttle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThrottles) ResetFailures(ctx context.Context, record *accounts.Throttle) (*accounts.Throttle, error) {
	args := m.Called(ctx, record)
	if v := args.Get(0); v != nil {
		return v.(*accounts.Throttle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThrottles) MarkSuspended(ctx context.Context, record *accounts.Throttle, until time.Time) (*accounts.Throttle, error) {
	args := m.Called(ctx, record, until)
	if v := args.Get(0); v != nil {
		return v.(*accounts.Throttle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockThrottles) MarkBanned(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// stubThrottleReader answers pure reads from fixed maps.
type stubThrottleReader struct {
	suspended map[uuid.UUID]bool
	banned    map[uuid.UUID]bool
}

func (s *stubThrottleReader) IsSuspended(_ context.Context, id uuid.UUID) (bool, error) {
	return s.suspended[id], nil
}

func (s *stubThrottleReader) IsBanned(_ context.Context, id uuid.UUID) (bool, error) {
	return s.banned[id], nil
}

// capturingSink records every activity event it sees.
type capturingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) captured() []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

type sentEmail struct {
	Template string
	Data     map[string]any
	To       string
	Subject  string
}

// captureGateway signals on a channel so tests can wait for the detached
// email goroutine without sleeping.
type captureGateway struct {
	ch chan sentEmail
}

func newCaptureGateway() *captureGateway {
	return &captureGateway{ch: make(chan sentEmail, 8)}
}

func (g *captureGateway) Send(_ context.Context, template string, data map[string]any, to, subject string) error {
	g.ch <- sentEmail{Template: template, Data: data, To: to, Subject: subject}
	return nil
}

func (g *captureGateway) wait(t *testing.T) sentEmail {
	t.Helper()
	select {
	case msg := <-g.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification send")
		return sentEmail{}
	}
}
