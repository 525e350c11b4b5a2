package coordinator

import (
	"context"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/messaging/producers"
)

// KafkaNotifier publishes notification events for the delivery workers
// (email, push) consuming the notification topic.
type KafkaNotifier struct {
	producer producers.MessagePublisher
}

func NewKafkaNotifier(producer producers.MessagePublisher) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) SendNotification(ctx context.Context, userID string, event NotificationEvent) error {
	payload := struct {
		UserID string `json:"user_id"`
		NotificationEvent
		SentAt time.Time `json:"sent_at"`
	}{
		UserID:            userID,
		NotificationEvent: event,
		SentAt:            time.Now().UTC(),
	}
	return n.producer.Publish(ctx, userID, payload)
}

// KafkaBroadcaster publishes realtime events for the websocket fan-out layer.
type KafkaBroadcaster struct {
	producer producers.MessagePublisher
}

func NewKafkaBroadcaster(producer producers.MessagePublisher) *KafkaBroadcaster {
	return &KafkaBroadcaster{producer: producer}
}

func (b *KafkaBroadcaster) Broadcast(ctx context.Context, event BroadcastEvent) error {
	return b.producer.Publish(ctx, event.BookingID, event)
}
