package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

type subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Deliverer pushes an encoded notification to every open connection of the given users.
type Deliverer interface {
	Notify(userIDs []int64, payload []byte)
}

type Notification struct {
	Type       string `json:"type"`
	ActorID    int64  `json:"actor_id"`
	SessionID  *int64 `json:"session_id,omitempty"`
	VideoID    *int64 `json:"video_id,omitempty"`
	Data       any    `json:"data,omitempty"`
	OccurredAt string `json:"timestamp"`
}

// Notifier forwards domain events to the recipients' websocket connections.
type Notifier struct {
	subscriber subscriber
	deliverer  Deliverer
	logger     *slog.Logger
}

func NewNotifier(sub subscriber, deliverer Deliverer, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{subscriber: sub, deliverer: deliverer, logger: logger}
}

// Run blocks until ctx is cancelled or every subscription channel closes.
func (n *Notifier) Run(ctx context.Context, topics ...string) error {
	if len(topics) == 0 {
		topics = Topics
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		messages, err := n.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			for msg := range messages {
				n.handle(topic, msg)
			}
		}(topic, messages)
	}
	wg.Wait()
	return nil
}

func (n *Notifier) handle(topic string, msg *message.Message) {
	defer msg.Ack()

	event, err := Decode(msg)
	if err != nil {
		n.logger.Warn("dropping malformed event", "topic", topic, "error", err)
		return
	}
	if len(event.Recipients) == 0 {
		return
	}

	payload, err := json.Marshal(Notification{
		Type:       event.Type,
		ActorID:    event.ActorID,
		SessionID:  event.SessionID,
		VideoID:    event.VideoID,
		Data:       event.Data,
		OccurredAt: event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		n.logger.Warn("encode notification", "topic", topic, "error", err)
		return
	}
	n.deliverer.Notify(event.Recipients, payload)
}
