package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Lv-up-Planner/initRepo/pkg/cache"
	"github.com/Lv-up-Planner/initRepo/pkg/credential"
	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/event"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/repository"
)

// UserService implements registration, lookup and credential verification.
// Reads by username go through the cache; every write to a user row is
// followed by an invalidation of that user's entry.
type UserService struct {
	store    repository.UserStore
	cache    *cache.Cache[domain.User]
	producer *event.Producer
	logger   *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	store repository.UserStore,
	userCache *cache.Cache[domain.User],
	producer *event.Producer,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:    store,
		cache:    userCache,
		producer: producer,
		logger:   logger,
	}
}

// RegisterInput holds the parameters for registering a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a user. A taken username or email is a conflict and
// leaves no row behind.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	stored, err := s.store.Create(ctx, credential.NewUser{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		return nil, err
	}
	user := domain.FromCredential(stored)

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "failed to publish user registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return user, nil
}

// GetByUsername returns the user with the exact username, served from the
// cache when possible.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.Contains(username, "@") {
		return nil, apperrors.NotFound("user", username)
	}

	user, err := s.cache.GetOrLoad(ctx, username, func(ctx context.Context) (domain.User, error) {
		stored, err := s.store.GetByIdentity(ctx, username)
		if err != nil {
			return domain.User{}, err
		}
		if stored.Username != username {
			return domain.User{}, apperrors.NotFound("user", username)
		}
		return *domain.FromCredential(stored), nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID returns the user with the given ID straight from the store.
func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	stored, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.FromCredential(stored), nil
}

// VerifyCredentials checks a username/password pair. The error for an
// unknown user and for a wrong password is the same.
func (s *UserService) VerifyCredentials(ctx context.Context, identity, password string) (*domain.User, error) {
	stored, err := s.store.Verify(ctx, identity, password)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchLastLogin(ctx, stored.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login",
			slog.String("user_id", stored.ID),
			slog.String("error", err.Error()),
		)
	} else {
		s.cache.Invalidate(ctx, stored.Username)
	}

	return domain.FromCredential(stored), nil
}

// ChangePassword replaces the password of username after checking the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, username, current, next string) error {
	stored, err := s.store.GetByIdentity(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("invalid credentials")
		}
		return err
	}
	if stored.Username != username {
		return apperrors.Unauthorized("invalid credentials")
	}

	if err := s.store.ChangePassword(ctx, stored.ID, current, next); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, stored.Username)

	s.logger.InfoContext(ctx, "password changed", slog.String("user_id", stored.ID))
	if err := s.producer.PublishPasswordChanged(ctx, stored.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish password changed event",
			slog.String("user_id", stored.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Stats reports user counts and cache health.
func (s *UserService) Stats(ctx context.Context) (*domain.Stats, error) {
	users, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Stats{Users: *users, Cache: s.cache.Stats(ctx)}, nil
}
