package event

import (
	"context"
	"log/slog"

	pkgkafka "github.com/Lv-up-Planner/initRepo/pkg/kafka"
)

// ProfileInvalidator drops a user's cached profile.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// CacheInvalidationTopics lists the topics whose events change a profile.
func CacheInvalidationTopics() []string {
	return []string{TopicTodoCompleted, TopicProfileLeveledUp, TopicProfileUpdated}
}

// NewCacheInvalidationHandler returns a handler that evicts the profile an
// event refers to. Every instance runs it in its own consumer group so an
// in-process cache on one instance sees writes made by another.
func NewCacheInvalidationHandler(profiles ProfileInvalidator, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, evt *pkgkafka.Event) error {
		userID, err := profileOwner(evt)
		if err != nil {
			return err
		}
		if userID == "" {
			logger.DebugContext(ctx, "ignoring event", slog.String("event_type", evt.EventType))
			return nil
		}

		profiles.Invalidate(ctx, userID)
		logger.DebugContext(ctx, "profile cache invalidated",
			slog.String("user_id", userID),
			slog.String("event_type", evt.EventType),
		)
		return nil
	}
}

// profileOwner returns the user whose profile evt touched, or "" for events
// that do not touch a profile. Every profile-touching payload has user_id.
func profileOwner(evt *pkgkafka.Event) (string, error) {
	switch evt.EventType {
	case TopicTodoCompleted, TopicProfileLeveledUp, TopicProfileUpdated:
	default:
		return "", nil
	}
	var owner struct {
		UserID string `json:"user_id"`
	}
	if err := evt.Decode(&owner); err != nil {
		return "", err
	}
	return owner.UserID, nil
}
