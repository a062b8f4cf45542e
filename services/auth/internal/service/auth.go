package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/auth/internal/client"
)

var loginAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Login attempts by result (success, rejected, error).",
	},
	[]string{"result"},
)

// CredentialVerifier checks a username/password pair.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, username, password string) (*client.Account, error)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresAt   time.Time       `json:"expires_at"`
	User        *client.Account `json:"user"`
}

// Stats counts logins and verifications since start.
type Stats struct {
	ServiceStatus  string `json:"service_status"`
	Logins         int64  `json:"logins"`
	LoginsRejected int64  `json:"logins_rejected"`
	Verifications  int64  `json:"verifications"`
	VerifyRejected int64  `json:"verifications_rejected"`
}

// AuthService issues and verifies stateless tokens. It holds no user data of
// its own: credentials are checked by the user service.
type AuthService struct {
	users     CredentialVerifier
	authority token.Authority
	logger    *slog.Logger

	logins         atomic.Int64
	loginsRejected atomic.Int64
	verifications  atomic.Int64
	verifyRejected atomic.Int64
}

// NewAuthService creates a new auth service.
func NewAuthService(users CredentialVerifier, authority token.Authority, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, authority: authority, logger: logger}
}

// Login verifies the credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, username, password string, device token.Device) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.InvalidInput("username and password are required")
	}

	acc, err := s.users.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			s.loginsRejected.Add(1)
			loginAttempts.WithLabelValues("rejected").Inc()
			s.logger.WarnContext(ctx, "login rejected", slog.String("username", username))
		} else {
			loginAttempts.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	issued, err := s.authority.Issue(ctx, token.Subject{
		UserID:   acc.ID,
		Identity: acc.Username,
		Device:   device,
	})
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, apperrors.Internal(err)
	}

	s.logins.Add(1)
	loginAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "login succeeded", slog.String("user_id", acc.ID))

	return &LoginResult{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		ExpiresAt:   issued.ExpiresAt,
		User:        acc,
	}, nil
}

// Verify checks a presented token. The concrete reason for a rejection is
// logged, never returned.
func (s *AuthService) Verify(ctx context.Context, raw string) (*token.Claims, error) {
	claims, err := s.authority.Verify(ctx, raw)
	if err != nil {
		s.verifyRejected.Add(1)
		s.logger.WarnContext(ctx, "token rejected", slog.String("reason", rejectReason(err)))
		return nil, err
	}
	s.verifications.Add(1)
	return claims, nil
}

func (s *AuthService) Stats() Stats {
	return Stats{
		ServiceStatus:  "online",
		Logins:         s.logins.Load(),
		LoginsRejected: s.loginsRejected.Load(),
		Verifications:  s.verifications.Load(),
		VerifyRejected: s.verifyRejected.Load(),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrMalformed):
		return "malformed"
	case errors.Is(err, token.ErrRevoked):
		return "revoked"
	default:
		return "unknown"
	}
}
