package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/Lv-up-Planner/initRepo/pkg/kafka"
	"github.com/Lv-up-Planner/initRepo/services/blog/internal/domain"
)

// Kafka topics for blog domain events.
var (
	TopicUserRegistered   = pkgkafka.Topic("user", "registered")
	TopicTodoCompleted    = pkgkafka.Topic("todo", "completed")
	TopicProfileLeveledUp = pkgkafka.Topic("profile", "leveled_up")
	TopicProfileUpdated   = pkgkafka.Topic("profile", "updated")
)

// Aggregate types for blog events.
const (
	AggregateTypeUser    = "user"
	AggregateTypeTodo    = "todo"
	AggregateTypeProfile = "profile"
)

// SourceBlogService identifies events originating from the blog service.
const SourceBlogService = "blog-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// TodoCompletedData is the payload for a todo.completed event.
type TodoCompletedData struct {
	TodoID      string `json:"todo_id"`
	UserID      string `json:"user_id"`
	XPGained    int    `json:"xp_gained"`
	Level       int    `json:"level"`
	CurrentXP   int    `json:"current_xp"`
	NextLevelXP int    `json:"next_level_xp"`
}

// ProfileLeveledUpData is the payload for a profile.leveled_up event.
type ProfileLeveledUpData struct {
	UserID       string `json:"user_id"`
	Level        int    `json:"level"`
	LevelsGained int    `json:"levels_gained"`
}

// ProfileUpdatedData is the payload for a profile.updated event.
type ProfileUpdatedData struct {
	UserID string `json:"user_id"`
}

// Producer publishes blog domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the blog service.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	if publisher == nil {
		publisher = pkgkafka.NopPublisher{}
	}
	return &Producer{publisher: publisher, logger: logger}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, acct *domain.Account) error {
	data := UserRegisteredData{ID: acct.ID, Username: acct.Username}
	if acct.Profile != nil {
		data.DisplayName = acct.Profile.DisplayName
	}
	return p.publish(ctx, TopicUserRegistered, acct.ID, AggregateTypeUser, data)
}

// PublishTodoCompleted publishes a todo.completed event.
func (p *Producer) PublishTodoCompleted(ctx context.Context, c *domain.Completion) error {
	data := TodoCompletedData{
		TodoID:      c.Todo.ID,
		UserID:      c.Todo.UserID,
		XPGained:    c.XPGained,
		Level:       c.Progress.Level,
		CurrentXP:   c.Progress.CurrentXP,
		NextLevelXP: c.Progress.NextLevelXP,
	}
	return p.publish(ctx, TopicTodoCompleted, c.Todo.ID, AggregateTypeTodo, data)
}

// PublishLeveledUp publishes a profile.leveled_up event.
func (p *Producer) PublishLeveledUp(ctx context.Context, userID string, c *domain.Completion) error {
	data := ProfileLeveledUpData{UserID: userID, Level: c.Progress.Level, LevelsGained: c.LevelsGained}
	return p.publish(ctx, TopicProfileLeveledUp, userID, AggregateTypeProfile, data)
}

// PublishProfileUpdated publishes a profile.updated event.
func (p *Producer) PublishProfileUpdated(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicProfileUpdated, userID, AggregateTypeProfile, ProfileUpdatedData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateID, aggregateType, SourceBlogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}
