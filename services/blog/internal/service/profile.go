package service

import (
	"context"
	"log/slog"

	"github.com/Lv-up-Planner/initRepo/pkg/cache"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/event"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/repository"
)

// ProfileService serves profiles through the cache. Every write goes to the
// store first and then drops the cached entry.
type ProfileService struct {
	profiles repository.ProfileRepository
	cache    *cache.Cache[domain.Profile]
	events   *event.Producer
	logger   *slog.Logger
}

// NewProfileService creates a new profile service. Updates are announced on
// events so other instances can drop their cached copy.
func NewProfileService(profiles repository.ProfileRepository, profileCache *cache.Cache[domain.Profile], events *event.Producer, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, cache: profileCache, events: events, logger: logger}
}

// Get returns the profile of userID.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := s.cache.GetOrLoad(ctx, userID, func(ctx context.Context) (domain.Profile, error) {
		stored, err := s.profiles.GetByUserID(ctx, userID)
		if err != nil {
			return domain.Profile{}, err
		}
		return *stored, nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update edits the free-form fields of the profile and returns the result.
func (s *ProfileService) Update(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.Profile, error) {
	if err := upd.Normalize(); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(ctx, userID, upd); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userID)

	if err := s.events.PublishProfileUpdated(ctx, userID); err != nil {
		s.logger.WarnContext(ctx, "failed to publish profile.updated event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", userID))
	return s.Get(ctx, userID)
}

// Invalidate drops the cached profile of userID. The todo service calls it
// after a reward commits.
func (s *ProfileService) Invalidate(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, userID)
}

// Leaderboard returns the top limit profiles. Zero selects the default.
func (s *ProfileService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit == 0 {
		limit = domain.DefaultLeaderboardLimit
	}
	if err := domain.ValidateLeaderboardLimit(limit); err != nil {
		return nil, err
	}
	return s.profiles.Leaderboard(ctx, limit)
}

// CacheStats reports profile cache activity.
func (s *ProfileService) CacheStats(ctx context.Context) cache.Stats {
	return s.cache.Stats(ctx)
}
