package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/Lv-up-Planner/initRepo/pkg/kafka"
	"github.com/Lv-up-Planner/initRepo/services/user/internal/domain"
)

// Kafka topics for user domain events.
var (
	TopicUserRegistered      = pkgkafka.Topic("user", "registered")
	TopicUserPasswordChanged = pkgkafka.Topic("user", "password_changed")
)

// AggregateTypeUser is the aggregate type for user events.
const AggregateTypeUser = "user"

// SourceUserService identifies events originating from the user service.
const SourceUserService = "user-service"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// UserPasswordChangedData is the payload for a user.password_changed event.
type UserPasswordChangedData struct {
	UserID string `json:"user_id"`
}

// Producer publishes user domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the user service.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	if publisher == nil {
		publisher = pkgkafka.NopPublisher{}
	}
	return &Producer{publisher: publisher, logger: logger}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{ID: user.ID, Username: user.Username, Email: user.Email}
	return p.publish(ctx, TopicUserRegistered, user.ID, data)
}

// PublishPasswordChanged publishes a user.password_changed event.
func (p *Producer) PublishPasswordChanged(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicUserPasswordChanged, userID, UserPasswordChangedData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(ctx, topic, aggregateID, AggregateTypeUser, SourceUserService, data)
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
