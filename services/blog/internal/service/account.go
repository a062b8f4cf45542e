package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/pkg/token"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/event"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/repository"
)

// SessionRevoker ends every session of a user at once. Only the opaque
// token strategy provides one.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// LoginUser is the caller identity returned with a token.
type LoginUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	TokenKind   token.Kind `json:"token_kind"`
	ExpiresAt   time.Time  `json:"expires_at"`
	User        LoginUser  `json:"user"`
}

// AccountService registers users and manages their tokens.
type AccountService struct {
	accounts    repository.AccountRepository
	creds       repository.CredentialRepository
	authority   token.Authority
	sessions    SessionRevoker
	progression domain.Progression
	producer    *event.Producer
	logger      *slog.Logger
}

// NewAccountService creates a new account service. sessions may be nil when
// the configured token strategy cannot revoke in bulk.
func NewAccountService(
	accounts repository.AccountRepository,
	creds repository.CredentialRepository,
	authority token.Authority,
	sessions SessionRevoker,
	progression domain.Progression,
	producer *event.Producer,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:    accounts,
		creds:       creds,
		authority:   authority,
		sessions:    sessions,
		progression: progression,
		producer:    producer,
		logger:      logger,
	}
}

// RegisterInput holds the parameters for registering an account.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Gender      string
}

// Register creates the credentials and the starting profile of a new user.
// A taken username, email or display name is a conflict and leaves no row
// behind.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	displayName, err := domain.NormalizeDisplayName(in.DisplayName)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.Register(ctx, domain.NewAccount{
		Username:    strings.TrimSpace(in.Username),
		Email:       strings.TrimSpace(in.Email),
		Password:    in.Password,
		DisplayName: displayName,
		Gender:      strings.TrimSpace(in.Gender),
	}, s.progression.Start())
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("user_id", acct.ID),
		slog.String("username", acct.Username),
	)

	if err := s.producer.PublishUserRegistered(ctx, acct); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user registered event",
			slog.String("user_id", acct.ID),
			slog.String("error", err.Error()),
		)
	}
	return acct, nil
}

// Login verifies the credentials and issues a token for device.
func (s *AccountService) Login(ctx context.Context, identity, password string, device token.Device) (*LoginResult, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || password == "" {
		return nil, apperrors.InvalidInput("username and password are required")
	}

	user, err := s.creds.Verify(ctx, identity, password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			loginAttempts.WithLabelValues("rejected").Inc()
			s.logger.WarnContext(ctx, "login rejected", slog.String("identity", identity))
		} else {
			loginAttempts.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	if err := s.creds.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	issued, err := s.authority.Issue(ctx, token.Subject{
		UserID:   user.ID,
		Identity: user.Username,
		Device:   device,
	})
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		return nil, err
	}

	loginAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "login succeeded",
		slog.String("user_id", user.ID),
		slog.String("token_kind", string(issued.Kind)),
	)

	return &LoginResult{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		TokenKind:   issued.Kind,
		ExpiresAt:   issued.ExpiresAt,
		User:        LoginUser{ID: user.ID, Username: user.Username},
	}, nil
}

// Logout revokes the presented token. Stateless tokens yield
// token.ErrRevocationUnsupported.
func (s *AccountService) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return apperrors.Unauthorized("missing token")
	}
	if err := s.authority.Revoke(ctx, raw); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "session revoked")
	return nil
}

// LogoutAll revokes every session of userID and returns how many were live.
func (s *AccountService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	if s.sessions == nil {
		return 0, token.ErrRevocationUnsupported
	}
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("user_id", userID),
		slog.Int64("revoked", n),
	)
	return n, nil
}
