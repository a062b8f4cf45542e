package kafka

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// SeenStore remembers the IDs of events that were handled successfully.
// Implementations must be safe for concurrent use.
type SeenStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// MemorySeenStore keeps event IDs in process memory for a fixed window. It
// only catches redeliveries to this instance, which is all a per-instance
// consumer group needs.
type MemorySeenStore struct {
	ids *gocache.Cache
}

// NewMemorySeenStore forgets IDs window after they were marked.
func NewMemorySeenStore(window time.Duration) *MemorySeenStore {
	return &MemorySeenStore{ids: gocache.New(window, window)}
}

func (s *MemorySeenStore) Seen(_ context.Context, eventID string) (bool, error) {
	_, ok := s.ids.Get(eventID)
	return ok, nil
}

func (s *MemorySeenStore) MarkSeen(_ context.Context, eventID string) error {
	s.ids.SetDefault(eventID, struct{}{})
	return nil
}

// Len counts remembered IDs, including expired ones not yet swept.
func (s *MemorySeenStore) Len() int {
	return s.ids.ItemCount()
}

// Dedup drops events whose ID the store has already seen. An ID is marked
// only after next succeeds, so a failed event is retried on redelivery.
// Events without an ID always run, and so do events the store cannot be
// asked about.
func Dedup(store SeenStore, next Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		id := event.EventID
		if id == "" {
			return next(ctx, event)
		}

		switch seen, err := store.Seen(ctx, id); {
		case err != nil:
			logger.WarnContext(ctx, "dedup lookup failed", slog.String("event_id", id), slog.String("error", err.Error()))
		case seen:
			logger.DebugContext(ctx, "duplicate event dropped",
				slog.String("event_id", id),
				slog.String("event_type", event.EventType),
			)
			return nil
		}

		if err := next(ctx, event); err != nil {
			return err
		}
		if err := store.MarkSeen(ctx, id); err != nil {
			logger.WarnContext(ctx, "event not marked seen", slog.String("event_id", id), slog.String("error", err.Error()))
		}
		return nil
	}
}
