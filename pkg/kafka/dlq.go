package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DLQTopicPrefix is prepended to a topic's name to form its dead-letter
// topic.
const DLQTopicPrefix = "planner.dlq"

// Headers added to a dead-lettered copy next to the original ones.
const (
	HeaderDLQTopic     = "dlq.original_topic"
	HeaderDLQPartition = "dlq.original_partition"
	HeaderDLQOffset    = "dlq.original_offset"
	HeaderDLQGroup     = "dlq.consumer_group"
	HeaderDLQError     = "dlq.error"
)

// DLQTopic names the dead-letter topic for topic.
func DLQTopic(topic string) string {
	return DLQTopicPrefix + "." + topic
}

// MessageWriter is the part of *kafka.Writer the dead-letter producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DLQProducer parks messages a consumer gave up on, so the consumer can
// commit past them.
type DLQProducer struct {
	writer MessageWriter
	logger *slog.Logger
}

// NewDLQProducer writes synchronously and waits for every in-sync replica:
// once Publish returns nil the original may be committed.
func NewDLQProducer(brokers []string, logger *slog.Logger) *DLQProducer {
	return NewDLQProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              1,
		BatchTimeout:           100 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, logger)
}

// NewDLQProducerWithWriter is NewDLQProducer over an existing writer.
func NewDLQProducerWithWriter(w MessageWriter, logger *slog.Logger) *DLQProducer {
	return &DLQProducer{writer: w, logger: logger}
}

// deadLetter copies msg onto its dead-letter topic. Key, value and headers
// are kept; the source position, group and cause are appended.
func deadLetter(msg kafka.Message, cause error, group string) kafka.Message {
	headers := append(make([]kafka.Header, 0, len(msg.Headers)+5), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDLQTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderDLQPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderDLQOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderDLQGroup, Value: []byte(group)},
	)
	if cause != nil {
		headers = append(headers, kafka.Header{Key: HeaderDLQError, Value: []byte(cause.Error())})
	}
	return kafka.Message{
		Topic:   DLQTopic(msg.Topic),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Publish writes the dead-letter copy of msg.
func (d *DLQProducer) Publish(ctx context.Context, msg kafka.Message, cause error, group string) error {
	out := deadLetter(msg, cause, group)
	log := d.logger.With(
		slog.String("dlq_topic", out.Topic),
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	if err := d.writer.WriteMessages(ctx, out); err != nil {
		log.ErrorContext(ctx, "dead-letter write failed", slog.String("error", err.Error()))
		return fmt.Errorf("publish to %s: %w", out.Topic, err)
	}

	deadLetteredTotal.WithLabelValues(msg.Topic).Inc()
	log.WarnContext(ctx, "message dead-lettered", slog.String("consumer_group", group))
	return nil
}

func (d *DLQProducer) Close() error {
	return d.writer.Close()
}
