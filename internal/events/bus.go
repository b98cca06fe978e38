// Package events carries domain events from the services to whoever listens:
// the in-process websocket notifier and, when configured, a Kafka topic.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

const (
	TopicSessionCreated   = "session.created"
	TopicSessionJoined    = "session.joined"
	TopicSessionConfirmed = "session.confirmed"
	TopicSessionCompleted = "session.completed"
	TopicSessionCancelled = "session.cancelled"
	TopicVideoFeedback    = "video.feedback"
)

// Topics lists every topic the services publish to.
var Topics = []string{
	TopicSessionCreated,
	TopicSessionJoined,
	TopicSessionConfirmed,
	TopicSessionCompleted,
	TopicSessionCancelled,
	TopicVideoFeedback,
}

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ActorID    int64     `json:"actor_id"`
	Recipients []int64   `json:"recipients"`
	SessionID  *int64    `json:"session_id,omitempty"`
	VideoID    *int64    `json:"video_id,omitempty"`
	Data       any       `json:"data,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Config struct {
	KafkaBrokers []string
}

// Bus always publishes to an in-process gochannel and mirrors every event to
// Kafka when brokers are configured.
type Bus struct {
	local  *gochannel.GoChannel
	remote message.Publisher
	logger *slog.Logger
}

func NewBus(cfg Config, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(logger)

	bus := &Bus{
		local: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, wmLogger),
		logger: logger,
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, wmLogger)
		if err != nil {
			_ = bus.local.Close()
			return nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		bus.remote = publisher
		logger.Info("kafka event publisher enabled", "brokers", cfg.KafkaBrokers)
	}
	return bus, nil
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event.Type == "" {
		return errors.New("event type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	if err := b.local.Publish(event.Type, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	if b.remote != nil {
		remoteMsg := message.NewMessage(event.ID, payload)
		remoteMsg.Metadata.Set("type", event.Type)
		if err := b.remote.Publish(event.Type, remoteMsg); err != nil {
			return fmt.Errorf("publish %s to kafka: %w", event.Type, err)
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.local.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	var errs []error
	if b.remote != nil {
		errs = append(errs, b.remote.Close())
	}
	errs = append(errs, b.local.Close())
	return errors.Join(errs...)
}

func Decode(msg *message.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return event, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
