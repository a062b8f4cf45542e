package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	pkgkafka "github.com/Lv-up-Planner/initRepo/pkg/kafka"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

// --- Repository mocks ---

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) Register(ctx context.Context, in domain.NewAccount, start domain.Progress) (*domain.Account, error) {
	args := m.Called(ctx, in, start)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

type mockCredentials struct {
	mock.Mock
}

func (m *mockCredentials) Verify(ctx context.Context, identity, secret string) (*credential.User, error) {
	args := m.Called(ctx, identity, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.User), args.Error(1)
}

func (m *mockCredentials) TouchLastLogin(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *mockProfiles) Update(ctx context.Context, userID string, upd domain.ProfileUpdate) error {
	return m.Called(ctx, userID, upd).Error(0)
}

func (m *mockProfiles) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LeaderboardEntry), args.Error(1)
}

type mockTodos struct {
	mock.Mock
}

func (m *mockTodos) Create(ctx context.Context, todo *domain.Todo) error {
	return m.Called(ctx, todo).Error(0)
}

func (m *mockTodos) GetByID(ctx context.Context, id string) (*domain.Todo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Todo), args.Error(1)
}

func (m *mockTodos) ListByUser(ctx context.Context, userID string) ([]domain.Todo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Todo), args.Error(1)
}

func (m *mockTodos) SoftDelete(ctx context.Context, userID, todoID string, at time.Time) error {
	return m.Called(ctx, userID, todoID, at).Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CompleteTodo(ctx context.Context, userID, todoID string) (*domain.Completion, error) {
	args := m.Called(ctx, userID, todoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Completion), args.Error(1)
}

type mockPosts struct {
	mock.Mock
}

func (m *mockPosts) Create(ctx context.Context, post *domain.Post) error {
	return m.Called(ctx, post).Error(0)
}

func (m *mockPosts) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Post), args.Error(1)
}

func (m *mockPosts) List(ctx context.Context, limit, offset int) ([]domain.Post, int, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Post), args.Int(1), args.Error(2)
}

func (m *mockPosts) Update(ctx context.Context, id, authorID string, upd domain.PostUpdate, at time.Time) error {
	return m.Called(ctx, id, authorID, upd, at).Error(0)
}

func (m *mockPosts) Delete(ctx context.Context, id, authorID string) error {
	return m.Called(ctx, id, authorID).Error(0)
}

// --- Token mocks ---

type mockAuthority struct {
	mock.Mock
}

func (m *mockAuthority) Issue(ctx context.Context, subject token.Subject) (*token.Issued, error) {
	args := m.Called(ctx, subject)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.Issued), args.Error(1)
}

func (m *mockAuthority) Verify(ctx context.Context, raw string) (*token.Claims, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.Claims), args.Error(1)
}

func (m *mockAuthority) Revoke(ctx context.Context, raw string) error {
	return m.Called(ctx, raw).Error(0)
}

type mockRevoker struct {
	mock.Mock
}

func (m *mockRevoker) RevokeAll(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// --- Events ---

type recordingPublisher struct {
	topics []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.topics = append(p.topics, topic)
	return p.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

const (
	testUserID  = "11111111-1111-1111-1111-111111111111"
	otherUserID = "22222222-2222-2222-2222-222222222222"
	testTodoID  = "33333333-3333-3333-3333-333333333333"
	testPostID  = "44444444-4444-4444-4444-444444444444"
)
