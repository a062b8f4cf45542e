package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/Lv-up-Planner/initRepo/pkg/logger"
)

// SchemaVersion is stamped on every event this build publishes.
const SchemaVersion = 1

const (
	headerEventType     = "event_type"
	headerSource        = "source"
	headerCorrelationID = "correlation_id"
)

// ErrMalformedEvent is returned by ParseEvent for payloads that are not an
// event envelope. Such messages are never retried.
var ErrMalformedEvent = errors.New("malformed event")

// Event is the JSON envelope of every published message. Data holds the
// topic-specific payload.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope. The correlation ID of the request in
// ctx, if any, travels with the event.
func NewEvent(ctx context.Context, eventType, aggregateID, aggregateType, source string, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       SchemaVersion,
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		CorrelationID: logger.CorrelationIDFromContext(ctx),
		Data:          payload,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// Message builds the Kafka message for e. The aggregate ID is the key so
// every event of one aggregate lands on one partition in order.
func (e *Event) Message(topic string) (kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	headers := []kafka.Header{
		{Key: headerEventType, Value: []byte(e.EventType)},
		{Key: headerSource, Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: headerCorrelationID, Value: []byte(e.CorrelationID)})
	}
	return kafka.Message{Topic: topic, Key: []byte(e.AggregateID), Value: value, Headers: headers}, nil
}

// ParseEvent decodes a message value. Envelopes without an ID or type are
// rejected with ErrMalformedEvent.
func ParseEvent(value []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if e.EventID == "" || e.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_id or event_type", ErrMalformedEvent)
	}
	return &e, nil
}
