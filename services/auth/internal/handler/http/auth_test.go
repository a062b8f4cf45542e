package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/health"
	"github.com/Lv-up-Planner/initRepo/pkg/middleware"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/client"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/service"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyCredentials(ctx context.Context, username, password string) (*client.Account, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Account), args.Error(1)
}

func newTestRouter(t *testing.T) (http.Handler, *mockVerifier) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwtAuth, err := token.NewJWTAuthority(token.JWTConfig{Secret: strings.Repeat("s", 32)})
	require.NoError(t, err)
	users := new(mockVerifier)
	svc := service.NewAuthService(users, jwtAuth, logger)
	return NewRouter(svc, health.NewHandler(), logger, RouterConfig{CORS: middleware.DefaultCORSConfig()}), users
}

type loginEnvelope struct {
	Data struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		User        struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"data"`
}

type verifyEnvelope struct {
	Data  token.VerifyResult `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	body := `{"username":"alice","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var env loginEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env.Data.AccessToken
}

func TestLogin_ThenVerify(t *testing.T) {
	router, users := newTestRouter(t)
	users.On("VerifyCredentials", mock.Anything, "alice", "correct horse").
		Return(&client.Account{ID: "u-1", Username: "alice"}, nil)

	tok := login(t, router)
	require.NotEmpty(t, tok)

	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	var env verifyEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.True(t, env.Data.Valid)
	require.NotNil(t, env.Data.Claims)
	assert.Equal(t, "u-1", env.Data.Claims.UserID)
	assert.Equal(t, "alice", env.Data.Claims.Identity)
}

func TestVerify_PostBody(t *testing.T) {
	router, users := newTestRouter(t)
	users.On("VerifyCredentials", mock.Anything, "alice", "correct horse").
		Return(&client.Account{ID: "u-1", Username: "alice"}, nil)
	tok := login(t, router)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(VerifyRequest{Token: tok}))
	req := httptest.NewRequest(http.MethodPost, "/verify", &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestVerify_InvalidToken(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, header := range []string{"", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest(http.MethodGet, "/verify", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, header)
		var env verifyEnvelope
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
		assert.False(t, env.Data.Valid)
		require.NotNil(t, env.Error)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	}
}

func TestLogin_Rejected(t *testing.T) {
	router, users := newTestRouter(t)
	users.On("VerifyCredentials", mock.Anything, "alice", "wrong").
		Return(nil, apperrors.Unauthorized("invalid credentials"))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid credentials")
}

func TestLogin_UserServiceDown(t *testing.T) {
	router, users := newTestRouter(t)
	users.On("VerifyCredentials", mock.Anything, "alice", "pw").
		Return(nil, apperrors.Unavailable("user service unavailable", errors.New("dial tcp")))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLogin_Validation(t *testing.T) {
	router, users := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	users.AssertNotCalled(t, "VerifyCredentials", mock.Anything, mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	router, users := newTestRouter(t)
	users.On("VerifyCredentials", mock.Anything, "alice", "correct horse").
		Return(&client.Account{ID: "u-1", Username: "alice"}, nil)
	login(t, router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.JSONEq(t,
		`{"data":{"service_status":"online","logins":1,"logins_rejected":0,"verifications":0,"verifications_rejected":0}}`,
		rr.Body.String())
}
