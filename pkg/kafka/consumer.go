package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DeadLetterPublisher receives messages the handler kept failing on.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	MinBytes int
	MaxBytes int

	// MaxAttempts bounds handler calls per message. Zero means 3.
	MaxAttempts int
	// RetryBackoff is multiplied by the attempt number between retries.
	// Zero means 100ms.
	RetryBackoff time.Duration
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	return c
}

// Consumer reads events for a consumer group and hands them to a Handler.
// A message is committed once the handler succeeds, once it is undecodable,
// or once it has failed MaxAttempts times and been passed to the dead-letter
// publisher.
type Consumer struct {
	reader     MessageReader
	cfg        ConsumerConfig
	handler    Handler
	deadLetter DeadLetterPublisher
	logger     *slog.Logger
	closeOnce  sync.Once
}

// NewConsumer creates a consumer reading cfg.Topics as group cfg.GroupID.
// deadLetter may be nil.
func NewConsumer(cfg ConsumerConfig, handler Handler, deadLetter DeadLetterPublisher, logger *slog.Logger) *Consumer {
	cfg = cfg.withDefaults()
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.LastOffset,
	})
	return NewConsumerWithReader(r, cfg, handler, deadLetter, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(reader MessageReader, cfg ConsumerConfig, handler Handler, deadLetter DeadLetterPublisher, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader:     reader,
		cfg:        cfg.withDefaults(),
		handler:    handler,
		deadLetter: deadLetter,
		logger:     logger,
	}
}

// Start consumes messages until ctx is canceled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.Any("topics", c.cfg.Topics),
		slog.String("group", c.cfg.GroupID),
	)
	defer func() {
		c.logger.Info("consumer stopping", slog.String("group", c.cfg.GroupID))
		_ = c.Close()
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.RetryBackoff):
			}
			continue
		}

		if !c.process(ctx, msg) {
			return nil
		}
	}
}

// process handles one message and reports whether the loop should go on.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &msg})

	event, err := ParseEvent(msg.Value)
	if err != nil {
		consumedTotal.WithLabelValues(msg.Topic, resultInvalid).Inc()
		c.logger.ErrorContext(msgCtx, "failed to unmarshal event",
			slog.String("topic", msg.Topic),
			slog.String("error", err.Error()),
		)
		c.commit(msgCtx, msg)
		return true
	}
	if event.CorrelationID != "" {
		msgCtx = logger.WithCorrelationID(msgCtx, event.CorrelationID)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		lastErr = c.handler(msgCtx, event)
		if lastErr == nil {
			break
		}
		c.logger.WarnContext(msgCtx, "handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt < c.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * c.cfg.RetryBackoff):
			}
		}
	}

	if lastErr != nil {
		consumedTotal.WithLabelValues(msg.Topic, resultFailed).Inc()
		c.logger.ErrorContext(msgCtx, "giving up on message",
			slog.String("event_type", event.EventType),
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", lastErr.Error()),
		)
		if c.deadLetter != nil {
			// The dead-letter publisher logs its own failures; the message
			// is committed either way so the partition keeps moving.
			_ = c.deadLetter.Publish(msgCtx, msg, lastErr, c.cfg.GroupID)
		}
	} else {
		consumedTotal.WithLabelValues(msg.Topic, resultOK).Inc()
	}

	c.commit(msgCtx, msg)
	return true
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "failed to commit message",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the reader. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
