package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/event"
)

type accountFixture struct {
	accounts  *mockAccounts
	creds     *mockCredentials
	authority *mockAuthority
	revoker   *mockRevoker
	pub       *recordingPublisher
	svc       *AccountService
}

func newAccountFixture(withRevoker bool) *accountFixture {
	logger := newTestLogger()
	f := &accountFixture{
		accounts:  new(mockAccounts),
		creds:     new(mockCredentials),
		authority: new(mockAuthority),
		revoker:   new(mockRevoker),
		pub:       &recordingPublisher{},
	}
	var sessions SessionRevoker
	if withRevoker {
		sessions = f.revoker
	}
	f.svc = NewAccountService(f.accounts, f.creds, f.authority, sessions,
		domain.DefaultProgression(), event.NewProducer(f.pub, logger), logger)
	return f
}

func registeredAccount() *domain.Account {
	return &domain.Account{
		ID:        testUserID,
		Username:  "alice",
		CreatedAt: testNow,
		Profile: &domain.Profile{
			UserID: testUserID, Username: "alice", DisplayName: "Alice",
			Level: 1, CurrentXP: 0, NextLevelXP: 100,
		},
	}
}

// --- Register ---

func TestRegister_StartsAtLevelOne(t *testing.T) {
	f := newAccountFixture(true)
	ctx := context.Background()

	want := domain.NewAccount{Username: "alice", Password: "correct horse", DisplayName: "Alice"}
	f.accounts.On("Register", ctx, want, domain.Progress{Level: 1, CurrentXP: 0, NextLevelXP: 100}).
		Return(registeredAccount(), nil)

	acct, err := f.svc.Register(ctx, RegisterInput{Username: " alice ", Password: "correct horse", DisplayName: "  Alice "})

	require.NoError(t, err)
	assert.Equal(t, 1, acct.Profile.Level)
	assert.Equal(t, []string{event.TopicUserRegistered}, f.pub.topics)
	f.accounts.AssertExpectations(t)
}

func TestRegister_DuplicateDisplayName(t *testing.T) {
	f := newAccountFixture(true)
	ctx := context.Background()

	f.accounts.On("Register", ctx, mock.Anything, mock.Anything).
		Return(nil, apperrors.AlreadyExists("profile", "display_name", "Alice"))

	acct, err := f.svc.Register(ctx, RegisterInput{Username: "bob", Password: "correct horse", DisplayName: "Alice"})

	assert.Nil(t, acct)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.Empty(t, f.pub.topics)
}

func TestRegister_InvalidDisplayNameNeverReachesStore(t *testing.T) {
	f := newAccountFixture(true)

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "bob", Password: "correct horse", DisplayName: " x "})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	f.accounts.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_PublishFailureDoesNotFail(t *testing.T) {
	f := newAccountFixture(true)
	f.pub.err = errors.New("broker down")
	f.accounts.On("Register", mock.Anything, mock.Anything, mock.Anything).Return(registeredAccount(), nil)

	acct, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Password: "correct horse", DisplayName: "Alice"})

	require.NoError(t, err)
	assert.NotNil(t, acct)
}

// --- Login ---

func TestLogin_IssuesToken(t *testing.T) {
	f := newAccountFixture(true)
	ctx := context.Background()
	device := token.Device{UserAgent: "curl/8", IP: "192.0.2.1"}

	f.creds.On("Verify", ctx, "alice", "correct horse").Return(&credential.User{ID: testUserID, Username: "alice"}, nil)
	f.creds.On("TouchLastLogin", ctx, testUserID).Return(nil)
	f.authority.On("Issue", ctx, token.Subject{UserID: testUserID, Identity: "alice", Device: device}).
		Return(&token.Issued{Token: "tok", Kind: token.KindOpaque, ExpiresAt: testNow}, nil)

	res, err := f.svc.Login(ctx, " alice ", "correct horse", device)

	require.NoError(t, err)
	assert.Equal(t, "tok", res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, token.KindOpaque, res.TokenKind)
	assert.Equal(t, LoginUser{ID: testUserID, Username: "alice"}, res.User)
	f.creds.AssertExpectations(t)
}

func TestLogin_BadCredentials(t *testing.T) {
	f := newAccountFixture(true)
	f.creds.On("Verify", mock.Anything, "alice", "wrong").Return(nil, apperrors.Unauthorized("invalid credentials"))

	res, err := f.svc.Login(context.Background(), "alice", "wrong", token.Device{})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	f.authority.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newAccountFixture(true)

	_, err := f.svc.Login(context.Background(), "  ", "pw", token.Device{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLogin_TouchFailureIsNotFatal(t *testing.T) {
	f := newAccountFixture(true)
	f.creds.On("Verify", mock.Anything, "alice", "pw").Return(&credential.User{ID: testUserID, Username: "alice"}, nil)
	f.creds.On("TouchLastLogin", mock.Anything, testUserID).Return(errors.New("db down"))
	f.authority.On("Issue", mock.Anything, mock.Anything).Return(&token.Issued{Token: "tok", Kind: token.KindJWT}, nil)

	res, err := f.svc.Login(context.Background(), "alice", "pw", token.Device{})

	require.NoError(t, err)
	assert.Equal(t, "tok", res.AccessToken)
}

// --- Logout ---

func TestLogout_RevokesPresentedToken(t *testing.T) {
	f := newAccountFixture(true)
	f.authority.On("Revoke", mock.Anything, "tok").Return(nil)

	require.NoError(t, f.svc.Logout(context.Background(), "tok"))
	f.authority.AssertExpectations(t)
}

func TestLogout_StatelessTokenUnsupported(t *testing.T) {
	f := newAccountFixture(false)
	f.authority.On("Revoke", mock.Anything, "tok").Return(token.ErrRevocationUnsupported)

	err := f.svc.Logout(context.Background(), "tok")
	assert.ErrorIs(t, err, token.ErrRevocationUnsupported)
}

func TestLogoutAll(t *testing.T) {
	f := newAccountFixture(true)
	f.revoker.On("RevokeAll", mock.Anything, testUserID).Return(int64(3), nil)

	n, err := f.svc.LogoutAll(context.Background(), testUserID)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestLogoutAll_WithoutSessionStore(t *testing.T) {
	f := newAccountFixture(false)

	_, err := f.svc.LogoutAll(context.Background(), testUserID)
	assert.ErrorIs(t, err, token.ErrRevocationUnsupported)
}
